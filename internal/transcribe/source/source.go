// Package source discovers audio segments from a remote HLS playlist or a
// local directory.
package source

import (
	"context"
	"time"
)

// Segment is a unit of audio found by a Source. Remote segments carry Data;
// local segments carry Path to the file already on disk.
type Segment struct {
	ID           string
	Data         []byte
	Path         string
	DiscoveredAt time.Time
}

// Local reports whether the segment refers to a file on disk.
func (s Segment) Local() bool {
	return s.Path != "" && s.Data == nil
}

// AdmitFunc decides whether a segment id is new. It must be called before any
// download so that re-listed segments cost nothing.
type AdmitFunc func(id string) bool

// Source yields new segments each poll cycle.
type Source interface {
	// Poll returns the segments admitted this cycle in discovery order.
	// Failures to reach the origin are logged and yield an empty batch.
	Poll(ctx context.Context, admit AdmitFunc) ([]Segment, error)
	Close() error
}
