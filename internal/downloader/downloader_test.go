package downloader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/hfhub"
)

func TestClientSearchModelsUsesCacheOnHit(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Store("llama||10", []hfhub.RepoInfo{{ID: "meta-llama/Llama-3-8B"}}))

	c := NewClient(nil, nil, cache, "http://unused.invalid", nil)

	results, offline, err := c.SearchModels(context.Background(), "llama", "", 10)
	require.NoError(t, err)
	require.False(t, offline)
	require.Len(t, results, 1)
	require.Equal(t, "meta-llama/Llama-3-8B", results[0].RepoID)
}

func TestClientSearchModelsLiveFetchOnMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]hfhub.RepoInfo{{ID: "meta-llama/Llama-3-8B"}})
	}))
	defer server.Close()

	cache := newTestCache(t)
	c := NewClient(nil, nil, cache, server.URL, nil)

	results, offline, err := c.SearchModels(context.Background(), "llama", "", 10)
	require.NoError(t, err)
	require.False(t, offline)
	require.Len(t, results, 1)

	cached, ok, err := cache.Lookup("llama||10")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 1)
}

func TestClientCancelDownloadMarksTicketCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	tickets, err := NewTicketStore(fs, "/tickets")
	require.NoError(t, err)

	ticket, err := tickets.Create("meta-llama/Llama-3-8B", nil)
	require.NoError(t, err)

	c := NewClient(nil, tickets, nil, "", nil)
	require.NoError(t, c.CancelDownload(ticket.DownloadID))

	got, ok := c.GetDownloadStatus(ticket.DownloadID)
	require.True(t, ok)
	require.Equal(t, "cancelled", string(got.State))
}
