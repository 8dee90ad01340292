package downloader

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
)

func TestTicketStoreCreateGetUpdate(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewTicketStore(fs, "/tickets")
	require.NoError(t, err)

	ticket, err := store.Create("meta-llama/Llama-3-8B", []model.DownloadFile{{Path: "model.safetensors", TotalBytes: 100}})
	require.NoError(t, err)
	require.Equal(t, model.DownloadQueued, ticket.State)

	got, ok := store.Get(ticket.DownloadID)
	require.True(t, ok)
	require.Equal(t, ticket.RepoID, got.RepoID)

	updated, err := store.Update(ticket.DownloadID, func(t *model.DownloadTicket) {
		t.State = model.DownloadInProgress
		t.Files[0].PartialBytes = 50
	})
	require.NoError(t, err)
	require.Equal(t, model.DownloadInProgress, updated.State)
	require.Equal(t, int64(50), updated.Files[0].PartialBytes)
}

func TestTicketStoreUpdateUnknownTicket(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewTicketStore(fs, "/tickets")
	require.NoError(t, err)

	_, err = store.Update("does-not-exist", func(t *model.DownloadTicket) {})
	require.Error(t, err)
}

func TestTicketStorePersistsAcrossReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	store, err := NewTicketStore(fs, "/tickets")
	require.NoError(t, err)

	ticket, err := store.Create("meta-llama/Llama-3-8B", nil)
	require.NoError(t, err)

	reloaded, err := NewTicketStore(fs, "/tickets")
	require.NoError(t, err)

	got, ok := reloaded.Get(ticket.DownloadID)
	require.True(t, ok)
	require.Equal(t, ticket.RepoID, got.RepoID)
}
