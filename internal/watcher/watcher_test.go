package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/add0794/automated-file-mover/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// nextEventFor drains the watcher's event channel until an event for path
// arrives, failing the test on errors or timeout.
func nextEventFor(t *testing.T, w *Watcher, path string, timeout time.Duration) Event {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case event := <-w.Events():
			if event.Path == path {
				return event
			}
		case err := <-w.Errors():
			t.Fatalf("unexpected watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timeout waiting for event on %s", path)
		}
	}
}

func TestNew(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	err = w.Stop()
	assert.NoError(t, err)
}

func TestWatcher_Watch(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	assert.NoError(t, err)
}

func TestWatcher_Watch_Missing(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	err = w.Watch(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrWatchRootUnavailable))
}

func TestWatcher_Watch_NotADirectory(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	err = w.Watch(file)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrWatchRootUnavailable))
}

func TestWatcher_StartTwice(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.started
	}, time.Second, 10*time.Millisecond)

	err = w.Start(ctx)
	require.Error(t, err)
}

func TestWatcher_FileCreation(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	testFile := filepath.Join(tmpDir, "invoice.pdf")
	require.NoError(t, os.WriteFile(testFile, []byte("pdf bytes"), 0o644))

	event := nextEventFor(t, w, testFile, 2*time.Second)
	assert.Equal(t, EventCreated, event.Type)
	assert.False(t, event.IsDir)
}

func TestWatcher_DirectoryCreation(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	subDir := filepath.Join(tmpDir, "photos")
	require.NoError(t, os.Mkdir(subDir, 0o755))

	event := nextEventFor(t, w, subDir, 2*time.Second)
	assert.Equal(t, EventCreated, event.Type)
	assert.True(t, event.IsDir)
}

func TestWatcher_FileDeletion(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("content"), 0o644))

	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	require.NoError(t, os.Remove(testFile))

	event := nextEventFor(t, w, testFile, 2*time.Second)
	assert.Equal(t, EventRemoved, event.Type)
}

func TestWatcher_RootRemoved(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	root := filepath.Join(tmpDir, "zone")
	require.NoError(t, os.Mkdir(root, 0o755))

	require.NoError(t, w.Watch(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	require.NoError(t, os.Remove(root))

	event := nextEventFor(t, w, root, 2*time.Second)
	assert.Equal(t, EventRootGone, event.Type)
}

func TestWatcher_IgnoreHidden(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Start(ctx) //nolint:errcheck // Test goroutine

	hiddenFile := filepath.Join(tmpDir, ".hidden")
	require.NoError(t, os.WriteFile(hiddenFile, []byte("secret"), 0o644))

	normalFile := filepath.Join(tmpDir, "normal.txt")
	require.NoError(t, os.WriteFile(normalFile, []byte("content"), 0o644))

	// Only the normal file should produce an event.
	event := nextEventFor(t, w, normalFile, 2*time.Second)
	assert.Equal(t, normalFile, event.Path)

	select {
	case event := <-w.Events():
		if event.Path == hiddenFile {
			t.Fatalf("unexpected event for hidden file: %+v", event)
		}
	case <-time.After(200 * time.Millisecond):
		// No event for the hidden file.
	}
}
