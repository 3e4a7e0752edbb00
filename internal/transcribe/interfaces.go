package transcribe

import (
	"context"
	"errors"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/client"
)

var (
	// ErrAlreadyRunning is returned by Run when the orchestrator is already running.
	ErrAlreadyRunning = errors.New("pipeline already running")
	// ErrChunkTooSmall marks a segment below the minimum chunk size.
	ErrChunkTooSmall = errors.New("audio chunk too small")
)

// Speech transcribes audio and translates text. client.RetryClient implements it.
type Speech interface {
	// Transcribe returns the source-language text of the audio file at path.
	Transcribe(ctx context.Context, path string) client.Result
	// Translate returns text in the target language.
	Translate(ctx context.Context, text string) client.Result
	// CanTranslate reports whether a translator is configured.
	CanTranslate() bool
}

// Converter rewrites audio into a format the transcription backend accepts.
type Converter interface {
	// Convert writes inputPath in targetFormat and returns the new path.
	Convert(ctx context.Context, inputPath, targetFormat string) (string, error)
}

// OutputStore persists per-segment text files.
type OutputStore interface {
	// Complete reports whether a file exists for every tag.
	Complete(base string, tags ...string) bool
	Exists(base, tag string) bool
	Write(ctx context.Context, base, tag, text string) (string, error)
	Read(base, tag string) (string, error)
}

// Publisher exposes the latest translation as live text.
type Publisher interface {
	Publish(base, text string) (string, error)
}

// Result is one processed segment.
type Result struct {
	// Timestamp is the wall-clock time of processing, formatted 15:04:05.
	Timestamp   string `json:"timestamp"`
	SegmentID   string `json:"segment_id"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}
