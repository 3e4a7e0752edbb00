package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk.wav")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{1}, size), 0644))
	return path
}

func countingTranscriber(calls *atomic.Int32, errs []error, final Result) TranscriberFunc {
	return func(ctx context.Context, audioPath string) (Result, error) {
		n := int(calls.Add(1))
		if n <= len(errs) {
			return Result{}, errs[n-1]
		}
		return final, nil
	}
}

func TestRetryClient_TranscribeSuccess(t *testing.T) {
	var calls atomic.Int32
	c := NewRetryClient(countingTranscriber(&calls, nil, TextResult("Hola")), nil)

	result := c.Transcribe(context.Background(), writeAudio(t, 16))
	assert.Equal(t, OK, result.Kind)
	assert.Equal(t, "Hola", result.Text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	serverErr := &StatusError{StatusCode: 503, Body: "unavailable"}
	c := NewRetryClient(
		countingTranscriber(&calls, []error{serverErr, serverErr}, TextResult("Hola")),
		nil,
		WithBaseDelay(time.Millisecond),
	)

	result := c.Transcribe(context.Background(), writeAudio(t, 16))
	assert.Equal(t, OK, result.Kind)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	serverErr := &StatusError{StatusCode: 500, Body: "boom"}
	var logs bytes.Buffer
	c := NewRetryClient(
		countingTranscriber(&calls, []error{serverErr, serverErr, serverErr, serverErr}, TextResult("late")),
		nil,
		WithBaseDelay(time.Millisecond),
		WithLogger(logging.NewWriter(&logs, logging.LevelDebug)),
	)

	result := c.Transcribe(context.Background(), writeAudio(t, 16))
	assert.Equal(t, NoResult, result.Kind)
	assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(result.Err, &statusErr))
	assert.Equal(t, 500, statusErr.StatusCode)
	assert.Contains(t, logs.String(), "persistent server error")
}

func TestRetryClient_BackoffDoubles(t *testing.T) {
	c := NewRetryClient(nil, nil, WithBaseDelay(10*time.Millisecond))
	b := c.policy(context.Background())

	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Less(t, b.NextBackOff(), time.Duration(0), "no delay after the last attempt")
}

func TestRetryClient_DoesNotRetryClientErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint string
	}{
		{"bad request", &StatusError{StatusCode: 400, Body: "bad"}, "request format"},
		{"unauthorized", &StatusError{StatusCode: 401, Body: "no"}, "API key"},
		{"rate limited", &StatusError{StatusCode: 429, Body: "slow down"}, "remaining credits"},
		{"unknown", errors.New("something odd"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			var logs bytes.Buffer
			c := NewRetryClient(
				countingTranscriber(&calls, []error{tt.err}, TextResult("never")),
				nil,
				WithBaseDelay(time.Millisecond),
				WithLogger(logging.NewWriter(&logs, logging.LevelDebug)),
			)

			result := c.Transcribe(context.Background(), writeAudio(t, 16))
			assert.Equal(t, NoResult, result.Kind)
			assert.Equal(t, int32(1), calls.Load())
			if tt.hint != "" {
				assert.Contains(t, logs.String(), tt.hint)
			}
		})
	}
}

func TestRetryClient_SkipsOversizeFiles(t *testing.T) {
	var calls atomic.Int32
	c := NewRetryClient(
		countingTranscriber(&calls, nil, TextResult("never")),
		nil,
		WithMaxUploadBytes(8),
	)

	result := c.Transcribe(context.Background(), writeAudio(t, 9))
	assert.Equal(t, NoResult, result.Kind)
	assert.ErrorIs(t, result.Err, ErrFileTooLarge)
	assert.Zero(t, calls.Load())

	result = c.Transcribe(context.Background(), writeAudio(t, 8))
	assert.Equal(t, OK, result.Kind)
}

func TestRetryClient_MissingFile(t *testing.T) {
	var calls atomic.Int32
	c := NewRetryClient(countingTranscriber(&calls, nil, TextResult("never")), nil)

	result := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	assert.Equal(t, NoResult, result.Kind)
	assert.Zero(t, calls.Load())
}

func TestRetryClient_EmptyAndUnsupportedPassThrough(t *testing.T) {
	for _, kind := range []ResultKind{Empty, Unsupported} {
		t.Run(kind.String(), func(t *testing.T) {
			var calls atomic.Int32
			c := NewRetryClient(countingTranscriber(&calls, nil, Result{Kind: kind}), nil)

			result := c.Transcribe(context.Background(), writeAudio(t, 16))
			assert.Equal(t, kind, result.Kind)
			assert.False(t, result.Ok())
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRetryClient_CanceledContextStopsRetries(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	transcriber := TranscriberFunc(func(context.Context, string) (Result, error) {
		calls.Add(1)
		cancel()
		return Result{}, &StatusError{StatusCode: 502}
	})
	c := NewRetryClient(transcriber, nil, WithBaseDelay(time.Hour))

	done := make(chan Result, 1)
	go func() { done <- c.Transcribe(ctx, writeAudio(t, 16)) }()

	select {
	case result := <-done:
		assert.Equal(t, NoResult, result.Kind)
		assert.Equal(t, int32(1), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Transcribe did not return after cancellation")
	}
}

// slowServer answers after delay, or as soon as the client gives up.
func slowServer(t *testing.T, delay time.Duration, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(delay):
			w.Write([]byte(`{"text":"tarde"}`))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRetryClient_RetriesRequestTimeouts(t *testing.T) {
	var calls atomic.Int32
	server := slowServer(t, 300*time.Millisecond, &calls)

	var logs bytes.Buffer
	c := NewRetryClient(
		NewWhisperASRClient(server.URL, WithTimeout(50*time.Millisecond)),
		nil,
		WithBaseDelay(time.Millisecond),
		WithLogger(logging.NewWriter(&logs, logging.LevelDebug)),
	)

	result := c.Transcribe(context.Background(), writeAudio(t, 16))
	assert.Equal(t, NoResult, result.Kind)
	assert.Equal(t, int32(DefaultMaxAttempts), calls.Load())
	assert.Equal(t, ClassTransient, Classify(result.Err))
	assert.Contains(t, logs.String(), "persistent server error")
}

func TestRetryClient_CallerDeadlineIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := slowServer(t, 2*time.Second, &calls)

	var logs bytes.Buffer
	c := NewRetryClient(
		NewWhisperASRClient(server.URL, WithTimeout(time.Minute)),
		nil,
		WithBaseDelay(time.Millisecond),
		WithLogger(logging.NewWriter(&logs, logging.LevelDebug)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := c.Transcribe(ctx, writeAudio(t, 16))
	assert.Equal(t, NoResult, result.Kind)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, logs.String(), "context ended")
}

func TestRetryClient_Translate(t *testing.T) {
	t.Run("retries then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		translator := TranslatorFunc(func(ctx context.Context, text string) (Result, error) {
			if calls.Add(1) == 1 {
				return Result{}, &StatusError{StatusCode: 500}
			}
			assert.Equal(t, "Hola", text)
			return TextResult("Hello"), nil
		})
		c := NewRetryClient(nil, translator, WithBaseDelay(time.Millisecond))

		require.True(t, c.CanTranslate())
		result := c.Translate(context.Background(), "Hola")
		assert.Equal(t, OK, result.Kind)
		assert.Equal(t, "Hello", result.Text)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("disabled", func(t *testing.T) {
		c := NewRetryClient(nil, nil)
		assert.False(t, c.CanTranslate())
		result := c.Translate(context.Background(), "Hola")
		assert.Equal(t, NoResult, result.Kind)
		assert.ErrorIs(t, result.Err, ErrTranslationDisabled)
	})
}
