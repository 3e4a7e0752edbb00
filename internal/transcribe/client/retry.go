package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// DefaultMaxAttempts is the number of attempts, including the first, for transient failures.
const DefaultMaxAttempts = 3

// DefaultBaseDelay is the first backoff delay; each retry doubles it (2s, 4s, 8s...).
const DefaultBaseDelay = 2 * time.Second

// DefaultMaxUploadBytes is the largest audio file sent for transcription.
const DefaultMaxUploadBytes int64 = 25_000_000

// ErrFileTooLarge is reported when an audio file exceeds the upload ceiling.
var ErrFileTooLarge = errors.New("audio file exceeds upload limit")

// ErrTranslationDisabled is reported by Translate when no Translator is configured.
var ErrTranslationDisabled = errors.New("translation disabled")

// RetryClient wraps a Transcriber and a Translator with local validation,
// exponential backoff for transient failures, and failure logging. It never
// returns an error: every failure is logged and reported as a NoResult.
type RetryClient struct {
	transcriber    Transcriber
	translator     Translator
	maxAttempts    int
	baseDelay      time.Duration
	maxUploadBytes int64
	logger         *logging.Logger
}

// RetryOption configures the RetryClient.
type RetryOption func(*RetryClient)

// WithMaxAttempts sets the total number of attempts for transient failures.
func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the initial delay for exponential backoff.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *RetryClient) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxUploadBytes sets the upload size ceiling checked before transcription.
func WithMaxUploadBytes(n int64) RetryOption {
	return func(c *RetryClient) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger for retries and failures.
func WithLogger(l *logging.Logger) RetryOption {
	return func(c *RetryClient) {
		c.logger = l
	}
}

// NewRetryClient creates a RetryClient. translator may be nil when translation is off.
func NewRetryClient(transcriber Transcriber, translator Translator, opts ...RetryOption) *RetryClient {
	c := &RetryClient{
		transcriber:    transcriber,
		translator:     translator,
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logging.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CanTranslate reports whether a Translator is configured.
func (c *RetryClient) CanTranslate() bool {
	return c.translator != nil
}

// Transcribe validates the file size and transcribes audioPath.
func (c *RetryClient) Transcribe(ctx context.Context, audioPath string) Result {
	info, err := os.Stat(audioPath)
	if err != nil {
		c.logger.Error("cannot read audio file", err, logging.String("path", audioPath))
		return Failed(err)
	}
	if info.Size() > c.maxUploadBytes {
		c.logger.Warn("skipping file above the upload limit",
			logging.String("path", audioPath),
			logging.Int64("size", info.Size()),
			logging.Int64("max_size", c.maxUploadBytes),
		)
		return Failed(ErrFileTooLarge)
	}

	c.logger.Info("transcribing",
		logging.String("path", audioPath),
		logging.Int64("size", info.Size()),
	)

	return c.call(ctx, "transcription", audioPath, func(ctx context.Context) (Result, error) {
		return c.transcriber.Transcribe(ctx, audioPath)
	})
}

// Translate translates already extracted text.
func (c *RetryClient) Translate(ctx context.Context, text string) Result {
	if c.translator == nil {
		return Failed(ErrTranslationDisabled)
	}

	c.logger.Info("translating text", logging.Int("chars", len(text)))

	return c.call(ctx, "translation", "text", func(ctx context.Context) (Result, error) {
		return c.translator.Translate(ctx, text)
	})
}

func (c *RetryClient) call(ctx context.Context, action, item string, fn func(context.Context) (Result, error)) Result {
	var (
		result  Result
		attempt int
	)

	operation := func() error {
		attempt++
		r, err := fn(ctx)
		if err != nil {
			if classify(ctx, err).Retryable() {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	notify := func(err error, delay time.Duration) {
		c.logger.Warn("server error, retrying",
			logging.String("action", action),
			logging.String("item", item),
			logging.String("error", err.Error()),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.maxAttempts),
			logging.Duration("delay", delay),
		)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		c.logFailure(action, item, attempt, classify(ctx, err), err)
		return Failed(err)
	}

	switch result.Kind {
	case Empty:
		c.logger.Warn("no text returned", logging.String("action", action), logging.String("item", item))
	case Unsupported:
		c.logger.Warn("response is not plain text", logging.String("action", action), logging.String("item", item))
	case NoResult:
		c.logger.Warn("no result", logging.String("action", action), logging.String("item", item))
	}

	return result
}

func (c *RetryClient) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.baseDelay << uint(c.maxAttempts)
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxAttempts-1)), ctx)
}

func (c *RetryClient) logFailure(action, item string, attempts int, class ErrorClass, err error) {
	fields := []logging.Field{
		logging.String("action", action),
		logging.String("item", item),
		logging.String("class", class.String()),
		logging.Int("attempts", attempts),
	}
	if status, ok := StatusCode(err); ok {
		fields = append(fields, logging.Int("status", status))
	}

	switch class {
	case ClassTransient:
		c.logger.Error(fmt.Sprintf("persistent server error, skipping after %d attempts", attempts), err, fields...)
	case ClassCanceled:
		c.logger.Warn("call abandoned, context ended", append(fields, logging.String("error", err.Error()))...)
	default:
		if hint := Hint(err); hint != "" {
			fields = append(fields, logging.String("hint", hint))
		}
		c.logger.Error(action+" failed", err, fields...)
	}
}
