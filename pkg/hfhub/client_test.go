package hfhub

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHubClient(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		config := defaultHubConfig()
		client, err := NewHubClient(config)
		require.NoError(t, err)
		require.NotNil(t, client)
		assert.Equal(t, config, client.config)
	})

	t.Run("invalid config", func(t *testing.T) {
		config := &HubConfig{Endpoint: "", CacheDir: ""}
		client, err := NewHubClient(config)
		assert.Error(t, err)
		assert.Nil(t, client)
	})
}

func TestHubClientDownload(t *testing.T) {
	server := createMockHubServer(t)
	defer server.Close()

	tmpDir := t.TempDir()
	config := defaultHubConfig()
	config.CacheDir = tmpDir
	config.Endpoint = server.URL

	client, err := NewHubClient(config)
	require.NoError(t, err)

	path, err := client.Download(context.Background(), "test/repo", "config.json")
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.True(t, FileExists(path))
}

func TestHubClientDownloadWithOptions(t *testing.T) {
	server := createMockHubServer(t)
	defer server.Close()

	tmpDir := t.TempDir()
	config := defaultHubConfig()
	config.CacheDir = tmpDir
	config.Endpoint = server.URL

	client, err := NewHubClient(config)
	require.NoError(t, err)

	path, err := client.Download(context.Background(), "test/repo", "config.json",
		WithRevision("main"), WithForceDownload(true))
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestHubClientDownloadOptionError(t *testing.T) {
	config := defaultHubConfig()
	client, err := NewHubClient(config)
	require.NoError(t, err)

	failingOption := func(*DownloadConfig) error {
		return assert.AnError
	}

	_, err = client.Download(context.Background(), "test/repo", "config.json", failingOption)
	assert.Error(t, err)
}

func TestHubClientListFiles(t *testing.T) {
	mockFiles := []RepoFile{
		{Path: "config.json", Size: 1024, Type: "file"},
		{Path: "model.bin", Size: 2048, Type: "file"},
	}
	server := createMockRepoServerForTest(t, mockFiles, http.StatusOK)
	defer server.Close()

	config := defaultHubConfig()
	config.Endpoint = server.URL

	client, err := NewHubClient(config)
	require.NoError(t, err)

	files, err := client.ListFiles(context.Background(), "test/repo")
	require.NoError(t, err)
	assert.Len(t, files, len(mockFiles))
}

func TestHubClientListFilesOptionError(t *testing.T) {
	config := defaultHubConfig()
	client, err := NewHubClient(config)
	require.NoError(t, err)

	failingOption := func(*DownloadConfig) error {
		return assert.AnError
	}

	_, err = client.ListFiles(context.Background(), "test/repo", failingOption)
	assert.Error(t, err)
}

func TestWithRevision(t *testing.T) {
	config := &DownloadConfig{}
	opt := WithRevision("v2.0")
	require.NoError(t, opt(config))
	assert.Equal(t, "v2.0", config.Revision)
}

func TestWithForceDownload(t *testing.T) {
	config := &DownloadConfig{}
	opt := WithForceDownload(true)
	require.NoError(t, opt(config))
	assert.True(t, config.ForceDownload)
}

func TestGetHTTPClient(t *testing.T) {
	client := GetHTTPClient()
	require.NotNil(t, client)
	assert.Equal(t, time.Duration(0), client.Timeout)

	// The shared client and transport are process-wide singletons.
	again := GetHTTPClient()
	assert.Same(t, client, again)
}

func TestNewHTTPClientWithTimeout(t *testing.T) {
	client := NewHTTPClientWithTimeout(5 * time.Second)
	require.NotNil(t, client)
	assert.Equal(t, 5*time.Second, client.Timeout)
	assert.Same(t, GetHTTPClient().Transport, client.Transport)
}
