// Package convert turns audio the transcription API rejects into a format it accepts,
// by shelling out to ffmpeg.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// Target formats.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary cannot be located.
var ErrFFmpegNotFound = errors.New("ffmpeg not found: install it from https://ffmpeg.org/download.html")

// ErrUnsupportedFormat is returned for target formats the converter does not produce.
var ErrUnsupportedFormat = errors.New("unsupported target format")

// ConversionError reports a failed ffmpeg run.
type ConversionError struct {
	Input  string
	Format string
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("convert %s to %s: %v", filepath.Base(e.Input), e.Format, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// conversions maps a source extension to the format it must become.
var conversions = map[string]string{
	"aac": FormatWAV,
	"mp4": FormatMP3,
	// MPEG-TS is the usual HLS segment container.
	"ts": FormatMP3,
}

// TargetFormat reports the format a file with the given extension must be
// converted to. ext may carry a leading dot and any case.
func TargetFormat(ext string) (string, bool) {
	format, ok := conversions[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return format, ok
}

// SourceExtensions lists the extensions that convert to format, sorted.
func SourceExtensions(format string) []string {
	var exts []string
	for ext, target := range conversions {
		if target == format {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// OutputPath is where Convert writes the converted copy of inputPath.
func OutputPath(inputPath, format string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + format
}

// Converter wraps the ffmpeg binary.
type Converter struct {
	ffmpeg   string
	runner   Runner
	lookPath func(string) (string, error)
	logger   *logging.Logger
}

// Option configures the Converter.
type Option func(*Converter)

// WithFFmpegPath sets the ffmpeg binary name or path.
func WithFFmpegPath(path string) Option {
	return func(c *Converter) {
		if path != "" {
			c.ffmpeg = path
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(c *Converter) {
		c.runner = r
	}
}

// WithLookPath overrides binary discovery.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(c *Converter) {
		c.lookPath = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		ffmpeg:   "ffmpeg",
		runner:   NewRunner(),
		lookPath: exec.LookPath,
		logger:   logging.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Available returns ErrFFmpegNotFound when ffmpeg is not installed.
func (c *Converter) Available() error {
	if _, err := c.lookPath(c.ffmpeg); err != nil {
		return fmt.Errorf("%w (%s)", ErrFFmpegNotFound, c.ffmpeg)
	}
	return nil
}

// Convert writes inputPath in targetFormat next to it and returns the new path.
// An existing converted file is reused without invoking ffmpeg.
func (c *Converter) Convert(ctx context.Context, inputPath, targetFormat string) (string, error) {
	args, err := formatArgs(targetFormat)
	if err != nil {
		return "", err
	}

	outputPath := OutputPath(inputPath, targetFormat)
	if outputPath == inputPath {
		return inputPath, nil
	}
	if _, err := os.Stat(outputPath); err == nil {
		c.logger.Debug("converted file already exists", logging.String("path", outputPath))
		return outputPath, nil
	}

	if err := c.Available(); err != nil {
		return "", err
	}

	c.logger.Info("converting audio",
		logging.String("input", filepath.Base(inputPath)),
		logging.String("format", targetFormat),
	)

	cmdArgs := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-i", inputPath}, args...)
	cmdArgs = append(cmdArgs, outputPath)

	out, err := c.runner.Run(ctx, c.ffmpeg, cmdArgs...)
	if err != nil {
		os.Remove(outputPath)
		return "", &ConversionError{Input: inputPath, Format: targetFormat, Output: string(out), Err: err}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", &ConversionError{Input: inputPath, Format: targetFormat, Output: string(out), Err: err}
	}

	return outputPath, nil
}

func formatArgs(format string) ([]string, error) {
	switch format {
	case FormatWAV:
		return []string{"-acodec", "pcm_s16le", "-ar", "44100"}, nil
	case FormatMP3:
		return []string{"-q:a", "3"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
