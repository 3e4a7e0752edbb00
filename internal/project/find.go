// Package project locates and initializes boquer project directories.
package project

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ErrNotInProject is returned when no project encloses the current directory.
var ErrNotInProject = errors.New("not in a boquer project (run 'boquer init <name>')")

// MarkerDir is the directory that marks a project root.
const MarkerDir = ".boquer"

// MetadataFile is the project metadata file within the marker directory.
const MetadataFile = "project.json"

// EnvProjectRoot overrides project root detection.
const EnvProjectRoot = "BOQUER_PROJECT_ROOT"

// IsProject reports whether path holds .boquer/project.json with valid JSON.
func IsProject(path string) bool {
	markerDir := filepath.Join(path, MarkerDir)

	info, err := os.Stat(markerDir)
	if err != nil || !info.IsDir() {
		return false
	}

	data, err := os.ReadFile(filepath.Join(markerDir, MetadataFile))
	if err != nil {
		return false
	}

	var meta map[string]any
	return json.Unmarshal(data, &meta) == nil
}

// FindRoot finds the project enclosing the working directory. When
// BOQUER_PROJECT_ROOT is set it must point at a project.
func FindRoot() (string, error) {
	if envRoot := os.Getenv(EnvProjectRoot); envRoot != "" {
		absPath, err := filepath.Abs(envRoot)
		if err != nil || !IsProject(absPath) {
			return "", ErrNotInProject
		}
		return absPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return FindRootFrom(cwd)
}

// FindRootFrom walks up from startPath looking for a project root.
func FindRootFrom(startPath string) (string, error) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}

	for {
		if IsProject(current) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotInProject
		}
		current = parent
	}
}

// ReadMetadata loads project.json from root.
func ReadMetadata(root string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(root, MarkerDir, MetadataFile))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
