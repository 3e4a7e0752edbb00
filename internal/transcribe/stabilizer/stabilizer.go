// Package stabilizer waits for newly discovered audio files to finish writing.
package stabilizer

import (
	"context"
	"time"
)

// Default polling parameters for audio dropped into a watched directory.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultChecks   = 3
	DefaultTimeout  = 2 * time.Minute
)

// Stabilizer waits for a file to finish writing.
type Stabilizer interface {
	WaitForStable(ctx context.Context, path string) error
}

// Func adapts a function to Stabilizer.
type Func func(ctx context.Context, path string) error

// WaitForStable calls f.
func (f Func) WaitForStable(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Immediate treats every file as already complete.
var Immediate Stabilizer = Func(func(context.Context, string) error { return nil })
