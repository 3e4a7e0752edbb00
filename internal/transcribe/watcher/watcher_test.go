package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatch(t *testing.T, dir string, patterns []string) (<-chan FileEvent, *NotifyWatcher) {
	t.Helper()

	w, err := NewNotifyWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events, err := w.Watch(ctx, dir, patterns)
	require.NoError(t, err)
	return events, w
}

func TestNotifyWatcher_DetectsNewFile(t *testing.T) {
	tmpDir := t.TempDir()
	events, _ := startWatch(t, tmpDir, []string{"*.mp3"})

	testFile := filepath.Join(tmpDir, "clip.mp3")
	require.NoError(t, os.WriteFile(testFile, []byte("hello"), 0644))

	select {
	case event := <-events:
		assert.Equal(t, testFile, event.Path)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for file event")
	}
}

func TestNotifyWatcher_IgnoresNonMatchingPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	events, _ := startWatch(t, tmpDir, []string{"*.wav"})

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("hello"), 0644))

	select {
	case event := <-events:
		t.Fatalf("unexpected event for %s", event.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNotifyWatcher_DetectsRenameInto(t *testing.T) {
	tmpDir := t.TempDir()
	events, _ := startWatch(t, tmpDir, []string{"*.txt"})

	staging := filepath.Join(tmpDir, ".staging")
	require.NoError(t, os.WriteFile(staging, []byte("hola"), 0644))
	final := filepath.Join(tmpDir, "0001_clip_EN.txt")
	require.NoError(t, os.Rename(staging, final))

	select {
	case event := <-events:
		assert.Equal(t, final, event.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for rename event")
	}
}

func TestNotifyWatcher_StopClosesChannel(t *testing.T) {
	events, w := startWatch(t, t.TempDir(), nil)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Stop")
	}
}

func TestNotifyWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewNotifyWatcher()
	require.NoError(t, err)
	defer w.Stop()

	_, err = w.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}
