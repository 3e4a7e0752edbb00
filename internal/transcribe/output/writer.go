// Package output persists per-chunk transcription and translation text files.
package output

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Writer stores text for a chunk as <dir>/<base>_<TAG>.txt.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the file that holds the tag text for base.
func (w *Writer) Path(base, tag string) string {
	return filepath.Join(w.dir, FileName(base, tag))
}

// Exists reports whether the tag file for base is present.
func (w *Writer) Exists(base, tag string) bool {
	_, err := os.Stat(w.Path(base, tag))
	return err == nil
}

// Complete reports whether every tag file for base is present.
func (w *Writer) Complete(base string, tags ...string) bool {
	for _, tag := range tags {
		if !w.Exists(base, tag) {
			return false
		}
	}
	return true
}

// Write saves text for base under tag and returns the file path.
func (w *Writer) Write(ctx context.Context, base, tag, text string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if w.dir == "" {
		return "", fmt.Errorf("output directory is required")
	}
	if base == "" || tag == "" {
		return "", fmt.Errorf("base name and language tag are required")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	target := w.Path(base, tag)
	if err := WriteFileAtomic(target, []byte(text)); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	return target, nil
}

// Read returns the stored tag text for base.
func (w *Writer) Read(base, tag string) (string, error) {
	data, err := os.ReadFile(w.Path(base, tag))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileName builds "<base>_<TAG>.txt".
func FileName(base, tag string) string {
	return base + "_" + strings.ToUpper(tag) + ".txt"
}

// BaseName derives a chunk's base name from a segment URL or file path:
// the last path element without its extension.
func BaseName(id string) string {
	name := id
	if u, err := url.Parse(id); err == nil && u.Scheme != "" && u.Host != "" {
		name = path.Base(u.Path)
	} else {
		name = filepath.Base(id)
	}

	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" || name == "." || name == "/" {
		return "chunk"
	}
	return name
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it into place, so readers never see a partial file.
func WriteFileAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// IsNotExist reports whether err means the text file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
