package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/convert"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/stabilizer"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/watcher"
)

// SupportedFormats are the audio extensions accepted from a local directory.
var SupportedFormats = []string{"mp3", "ogg", "wav", "mp4", "aac"}

// Supported reports whether path has a supported audio extension.
func Supported(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, f := range SupportedFormats {
		if ext == f {
			return true
		}
	}
	return false
}

// Local yields audio files dropped into a directory. A watch goroutine waits
// for each new file to stop growing and queues it; Poll drains the queue.
type Local struct {
	dir        string
	watcher    watcher.FileWatcher
	stabilizer stabilizer.Stabilizer
	done       func(path string) bool
	logger     *logging.Logger

	mu      sync.Mutex
	queue   []string
	scanned bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// LocalOption configures the Local source.
type LocalOption func(*Local)

// WithWatcher sets the directory watcher.
func WithWatcher(w watcher.FileWatcher) LocalOption {
	return func(l *Local) {
		l.watcher = w
	}
}

// WithStabilizer sets how new files are checked for completion.
func WithStabilizer(s stabilizer.Stabilizer) LocalOption {
	return func(l *Local) {
		l.stabilizer = s
	}
}

// WithDoneCheck sets the predicate that marks pre-existing files as already
// processed, so the start-up scan skips them.
func WithDoneCheck(fn func(path string) bool) LocalOption {
	return func(l *Local) {
		l.done = fn
	}
}

// WithLocalLogger sets the logger.
func WithLocalLogger(lg *logging.Logger) LocalOption {
	return func(l *Local) {
		l.logger = lg
	}
}

// NewLocal starts watching dir. Close stops the watch.
func NewLocal(dir string, opts ...LocalOption) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "watch", Path: dir, Err: os.ErrInvalid}
	}

	l := &Local{
		dir:        dir,
		stabilizer: stabilizer.Default(),
		done:       func(string) bool { return false },
		logger:     logging.Nop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.watcher == nil {
		w, err := watcher.NewNotifyWatcher()
		if err != nil {
			return nil, err
		}
		w.OnError(func(err error) {
			l.logger.Warn("directory watch error", logging.String("error", err.Error()))
		})
		l.watcher = w
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := l.watcher.Watch(ctx, dir, nil)
	if err != nil {
		cancel()
		l.watcher.Stop()
		return nil, err
	}
	l.cancel = cancel

	l.wg.Add(1)
	go l.consume(ctx, events)

	l.logger.Info("watching directory", logging.String("dir", dir))
	return l, nil
}

// Dir returns the watched directory.
func (l *Local) Dir() string {
	return l.dir
}

// Poll returns queued files that admit accepts. The first call also yields
// files that were already present and not yet fully processed.
func (l *Local) Poll(ctx context.Context, admit AdmitFunc) ([]Segment, error) {
	var paths []string

	l.mu.Lock()
	first := !l.scanned
	l.scanned = true
	queued := l.queue
	l.queue = nil
	l.mu.Unlock()

	if first {
		existing, err := l.scan()
		if err != nil {
			l.logger.Error("failed to scan directory", err, logging.String("dir", l.dir))
		}
		paths = append(paths, existing...)
	}
	paths = append(paths, queued...)

	var segments []Segment
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		if !admit(p) {
			continue
		}
		segments = append(segments, Segment{ID: p, Path: p, DiscoveredAt: time.Now()})
	}
	return segments, nil
}

// Close stops the watch and waits for the queueing goroutine.
func (l *Local) Close() error {
	l.cancel()
	err := l.watcher.Stop()
	l.wg.Wait()
	return err
}

func (l *Local) consume(ctx context.Context, events <-chan watcher.FileEvent) {
	defer l.wg.Done()

	for ev := range events {
		if !l.accept(ev.Path) {
			continue
		}

		if err := l.stabilizer.WaitForStable(ctx, ev.Path); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("file did not settle, skipping",
				logging.String("path", ev.Path),
				logging.String("error", err.Error()),
			)
			continue
		}

		l.mu.Lock()
		l.queue = append(l.queue, ev.Path)
		l.mu.Unlock()

		l.logger.Info("queued new file", logging.String("path", ev.Path))
	}
}

// scan lists existing audio files, oldest first, skipping finished ones.
func (l *Local) scan() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	type found struct {
		path string
		mod  time.Time
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		if !l.accept(path) || l.done(path) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, found{path: path, mod: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].mod.Equal(files[j].mod) {
			return files[i].mod.Before(files[j].mod)
		}
		return files[i].path < files[j].path
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	if len(paths) > 0 {
		l.logger.Info("found audio files to transcribe", logging.Int("count", len(paths)))
	}
	return paths, nil
}

// accept filters hidden files, unsupported formats and converter output.
func (l *Local) accept(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !Supported(path) {
		l.logger.Warn("skipping unsupported file format", logging.String("path", path))
		return false
	}
	return !derived(path)
}

// derived reports whether path is the converted copy of a sibling file.
func derived(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, src := range convert.SourceExtensions(ext) {
		for _, candidate := range []string{stem + "." + src, stem + "." + strings.ToUpper(src)} {
			if _, err := os.Stat(candidate); err == nil {
				return true
			}
		}
	}
	return false
}
