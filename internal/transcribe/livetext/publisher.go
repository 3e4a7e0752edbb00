// Package livetext publishes the most recent translation to a directory and
// lets readers fetch or follow it.
package livetext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/output"
)

// ErrNoLiveText is returned by Latest when no published file exists yet.
var ErrNoLiveText = errors.New("no live text published yet")

// seqWidth is the zero padding of the sequence prefix.
const seqWidth = 6

// Publisher writes live text files named <seq>_<base>_<TAG>.txt.
type Publisher struct {
	dir    string
	tag    string
	logger *logging.Logger

	mu  sync.Mutex
	seq int
}

// NewPublisher creates the directory if needed and continues the sequence
// from the files already present.
func NewPublisher(dir, tag string, logger *logging.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create live text directory: %w", err)
	}

	files, err := list(dir, tag)
	if err != nil {
		return nil, err
	}

	p := &Publisher{dir: dir, tag: strings.ToUpper(tag), logger: logger}
	if len(files) > 0 {
		p.seq = files[len(files)-1].seq
	}
	return p, nil
}

// Dir returns the live text directory.
func (p *Publisher) Dir() string {
	return p.dir
}

// Publish writes text as the newest live file and returns its path.
func (p *Publisher) Publish(base, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.seq + 1
	name := fmt.Sprintf("%0*d_%s", seqWidth, next, output.FileName(base, p.tag))
	target := filepath.Join(p.dir, name)

	if err := output.WriteFileAtomic(target, []byte(text)); err != nil {
		return "", fmt.Errorf("publish live text: %w", err)
	}
	p.seq = next

	p.logger.Debug("published live text", logging.String("path", target), logging.Int("seq", next))
	return target, nil
}

// Latest returns the path and contents of the most recent live file in dir.
func Latest(dir, tag string) (string, string, error) {
	files, err := list(dir, tag)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", ErrNoLiveText
		}
		return "", "", err
	}
	if len(files) == 0 {
		return "", "", ErrNoLiveText
	}

	path := filepath.Join(dir, files[len(files)-1].name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read live text: %w", err)
	}
	return path, string(data), nil
}

type liveFile struct {
	name string
	seq  int
}

// list returns the tag files in dir ordered oldest first. Files without a
// sequence prefix sort before sequenced ones, by name.
func list(dir, tag string) ([]liveFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []liveFile
	for _, e := range entries {
		if e.IsDir() || !Matches(e.Name(), tag) {
			continue
		}
		files = append(files, liveFile{name: e.Name(), seq: sequence(e.Name())})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].seq != files[j].seq {
			return files[i].seq < files[j].seq
		}
		return files[i].name < files[j].name
	})
	return files, nil
}

// Matches reports whether name is a published file for tag.
func Matches(name, tag string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, "_"+strings.ToUpper(tag)+".txt")
}

// sequence returns the numeric prefix written by Publish, or -1. The prefix
// must be all digits and at least seqWidth long, so names like
// 2024_clip_EN.txt do not count.
func sequence(name string) int {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok || len(prefix) < seqWidth {
		return -1
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return -1
		}
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return -1
	}
	return n
}
