package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("/data/*.txt", 0, func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce")

	_, err = New("/data/*/summary*.txt", time.Second, func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wildcards")
}

func TestWatcherDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := New(filepath.Join(dir, "summary*.txt"), 100*time.Millisecond, func(context.Context) {
		fired.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "summary_a.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("row\n"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 3*time.Second, 20*time.Millisecond, "burst of writes should collapse into one refresh")

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	var fired atomic.Int32
	w, err := New(filepath.Join(dir, "summary*.txt"), 50*time.Millisecond, func(context.Context) {
		fired.Add(1)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o600))
	time.Sleep(300 * time.Millisecond)

	assert.EqualValues(t, 0, fired.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "*.txt"), 50*time.Millisecond, func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
