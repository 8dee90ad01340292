package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestModelIDForPath(t *testing.T) {
	root := "/library"
	id := modelIDForPath(root, filepath.Join(root, "llm", "meta-llama", "llama-3-8b", "model.gguf"))
	require.Equal(t, filepath.Join("llm", "meta-llama", "llama-3-8b"), id)

	require.Empty(t, modelIDForPath(root, filepath.Join(root, "llm")))
}

func TestWatcherDebouncesBurstIntoSingleFlush(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "llm", "meta-llama", "llama-3-8b")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))

	flushes := make(chan []string, 8)
	w, err := New(root, func(ids []string) { flushes <- ids }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(modelDir, "metadata.json")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case ids := <-flushes:
		require.Contains(t, ids, filepath.Join("llm", "meta-llama", "llama-3-8b"))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}

	select {
	case extra := <-flushes:
		t.Fatalf("expected writes to coalesce into one flush, got extra: %v", extra)
	case <-time.After(700 * time.Millisecond):
	}
}

func TestSuppressIgnoresMatchingPath(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "llm", "meta-llama", "llama-3-8b")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))

	flushes := make(chan []string, 8)
	w, err := New(root, func(ids []string) { flushes <- ids }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(modelDir, "metadata.json")
	w.Suppress(path, time.Now(), time.Second)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	select {
	case ids := <-flushes:
		t.Fatalf("expected suppressed write to produce no flush, got: %v", ids)
	case <-time.After(700 * time.Millisecond):
	}
}
