// Package client provides transcription and translation backends and the
// retry policy wrapped around them.
package client

import "context"

// Transcriber turns an audio file into source-language text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// Translator turns source-language text into target-language text.
type Translator interface {
	Translate(ctx context.Context, text string) (Result, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, audioPath string) (Result, error)

// Transcribe calls f.
func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	return f(ctx, audioPath)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, text string) (Result, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, text string) (Result, error) {
	return f(ctx, text)
}
