package stabilizer

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrStabilizationTimeout is returned when the file does not stabilize within the timeout.
var ErrStabilizationTimeout = errors.New("stabilization timeout: file did not stabilize in time")

// PollStabilizer implements Stabilizer by sampling the file size.
type PollStabilizer struct {
	// Interval is the duration between file size checks.
	Interval time.Duration

	// Checks is the number of consecutive unchanged samples required.
	Checks int

	// Timeout bounds the wait when the context has no deadline. Zero disables it.
	Timeout time.Duration
}

// NewPollStabilizer creates a new polling-based stabilizer.
func NewPollStabilizer(interval time.Duration, checks int) *PollStabilizer {
	return &PollStabilizer{
		Interval: interval,
		Checks:   checks,
	}
}

// Default returns a PollStabilizer with the package defaults.
func Default() *PollStabilizer {
	return &PollStabilizer{
		Interval: DefaultInterval,
		Checks:   DefaultChecks,
		Timeout:  DefaultTimeout,
	}
}

// WaitForStable blocks until the size of path is non-zero and unchanged for
// Checks consecutive samples.
func (s *PollStabilizer) WaitForStable(ctx context.Context, path string) error {
	usingInternalTimeout := false
	if s.Timeout > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
			usingInternalTimeout = true
		}
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var lastSize int64 = -1
	stableCount := 0

	for stableCount < s.Checks {
		select {
		case <-ctx.Done():
			if usingInternalTimeout && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrStabilizationTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		size := info.Size()
		switch {
		case size == 0:
			// Still being created; an empty file never counts as stable.
			stableCount = 0
		case size == lastSize:
			stableCount++
		default:
			stableCount = 0
		}
		lastSize = size
	}

	return nil
}
