// Package watcher reports files created in a directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileEvent represents a detected file.
type FileEvent struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

// FileWatcher detects new files in a directory.
type FileWatcher interface {
	Watch(ctx context.Context, dir string, patterns []string) (<-chan FileEvent, error)
	Stop() error
}

// ErrorHandler receives errors reported by the underlying watch.
type ErrorHandler func(error)

// NotifyWatcher implements FileWatcher on top of fsnotify.
type NotifyWatcher struct {
	fsw      *fsnotify.Watcher
	patterns []string
	onError  ErrorHandler

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
}

// NewNotifyWatcher creates a new fsnotify-based file watcher.
func NewNotifyWatcher() (*NotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &NotifyWatcher{
		fsw:    fsw,
		stopCh: make(chan struct{}),
	}, nil
}

// OnError sets a handler for watch errors. Must be called before Watch.
func (w *NotifyWatcher) OnError(h ErrorHandler) {
	w.onError = h
}

// Watch starts watching dir for created or moved-in files matching patterns.
// An empty pattern list matches every file. The returned channel is closed
// when ctx ends or Stop is called.
func (w *NotifyWatcher) Watch(ctx context.Context, dir string, patterns []string) (<-chan FileEvent, error) {
	if err := w.fsw.Add(dir); err != nil {
		return nil, err
	}
	w.patterns = patterns

	events := make(chan FileEvent, 100)

	go w.readEvents(ctx, events)

	return events, nil
}

// Stop stops the watcher and releases resources. Safe to call more than once.
func (w *NotifyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	return w.fsw.Close()
}

func (w *NotifyWatcher) readEvents(ctx context.Context, events chan<- FileEvent) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.matchesPatterns(filepath.Base(ev.Name)) {
				continue
			}

			info, err := os.Stat(ev.Name)
			if err != nil || info.IsDir() {
				continue
			}

			select {
			case events <- FileEvent{Path: ev.Name, Size: info.Size(), Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}
	}
}

func (w *NotifyWatcher) matchesPatterns(name string) bool {
	if len(w.patterns) == 0 {
		return true
	}

	for _, pattern := range w.patterns {
		matched, err := filepath.Match(pattern, name)
		if err == nil && matched {
			return true
		}
	}
	return false
}
