package project

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Working directories created inside a project.
const (
	AudioDir    = "audio"
	TextDir     = "text"
	LiveTextDir = "live_text"
)

// Metadata is the content of project.json.
type Metadata struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Version   string `json:"version"`
}

var (
	ErrProjectExists = errors.New("project already exists")
	ErrNameEmpty     = errors.New("project name cannot be empty")
)

// Dirs returns the working directories of the project at root.
func Dirs(root string) []string {
	return []string{
		filepath.Join(root, AudioDir),
		filepath.Join(root, TextDir),
		filepath.Join(root, LiveTextDir),
	}
}

// Init creates .boquer/project.json and the audio, text and live_text
// directories under path. Existing working directories are left alone.
func Init(path, name string) error {
	if name == "" {
		return ErrNameEmpty
	}

	markerDir := filepath.Join(path, MarkerDir)
	if _, err := os.Stat(filepath.Join(markerDir, MetadataFile)); err == nil {
		return ErrProjectExists
	}

	if err := os.MkdirAll(markerDir, 0755); err != nil {
		return err
	}

	meta := Metadata{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0",
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(markerDir, MetadataFile), data, 0644); err != nil {
		return err
	}

	for _, dir := range Dirs(path) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
