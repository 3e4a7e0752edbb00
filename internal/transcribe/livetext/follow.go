package livetext

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/watcher"
)

// Update is delivered to a Follow callback for each new live file.
type Update struct {
	Path string
	Text string
}

// Follower invokes a callback for every live file created in a directory.
type Follower struct {
	dir    string
	tag    string
	logger *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFollower creates a Follower for tag files in dir.
func NewFollower(dir, tag string, logger *logging.Logger) *Follower {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Follower{dir: dir, tag: tag, logger: logger}
}

// Follow blocks until ctx is cancelled or Stop is called, calling fn once per
// new file whose name ends in the tag suffix.
func (f *Follower) Follow(ctx context.Context, fn func(Update)) error {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	w, err := watcher.NewNotifyWatcher()
	if err != nil {
		return err
	}
	defer w.Stop()

	w.OnError(func(err error) {
		f.logger.Warn("live text watch error", logging.String("error", err.Error()))
	})

	events, err := w.Watch(ctx, f.dir, nil)
	if err != nil {
		return err
	}

	f.logger.Info("following live text", logging.String("dir", f.dir), logging.String("tag", f.tag))

	for ev := range events {
		if !Matches(filepath.Base(ev.Path), f.tag) {
			continue
		}
		data, err := os.ReadFile(ev.Path)
		if err != nil {
			f.logger.Warn("cannot read live text", logging.String("path", ev.Path), logging.String("error", err.Error()))
			continue
		}
		fn(Update{Path: ev.Path, Text: string(data)})
	}

	return nil
}

// Stop ends a running Follow.
func (f *Follower) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
}
