// Package logging provides structured logging for the pipeline, backed by zerolog.
// Every component receives a *Logger through its constructor; there is no global logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a log severity level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zlevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a level name such as "debug" or "warn" to a Level.
// Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Config configures the logger
type Config struct {
	// LogDir is the directory for daily log files. Empty disables file output.
	LogDir string
	// Prefix is the log file prefix ("boquer" produces boquer-YYYY-MM-DD.log)
	Prefix string
	// RetentionDays is the number of days to retain old log files (default: 30)
	RetentionDays int
	// Component is attached to every entry as the "component" field
	Component string
	// MinLevel is the minimum log level to write (default: LevelInfo)
	MinLevel Level
	// Console writes human-readable entries to ConsoleOut (default os.Stderr)
	Console    bool
	ConsoleOut io.Writer
}

// DefaultRetentionDays is how long daily log files are kept.
const DefaultRetentionDays = 30

// DefaultLogDir returns ~/.boquer/logs
func DefaultLogDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".boquer", "logs")
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		LogDir:        DefaultLogDir(),
		Prefix:        "boquer",
		RetentionDays: DefaultRetentionDays,
		MinLevel:      LevelInfo,
		Console:       true,
	}
}

// Logger writes structured entries to the console and/or a daily rotated JSON file.
type Logger struct {
	zl   zerolog.Logger
	file *dailyFile
}

// New creates a Logger with the given configuration
func New(config Config) (*Logger, error) {
	if config.Prefix == "" {
		config.Prefix = "boquer"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionDays
	}

	var writers []io.Writer

	if config.Console {
		out := config.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	var file *dailyFile
	if config.LogDir != "" {
		if err := os.MkdirAll(config.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &dailyFile{dir: config.LogDir, prefix: config.Prefix, retentionDays: config.RetentionDays}
		if err := file.rotateIfNeeded(); err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	zl := zerolog.New(out).Level(config.MinLevel.zlevel()).With().Timestamp().Logger()
	if config.Component != "" {
		zl = zl.With().Str("component", config.Component).Logger()
	}

	l := &Logger{zl: zl, file: file}

	if file != nil {
		if err := file.cleanOldLogs(); err != nil {
			// cleanup errors do not fail initialization
			l.Error("failed to clean old logs", err)
		}
	}

	return l, nil
}

// NewWriter creates a logger emitting JSON lines to w, mainly for tests.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level.zlevel()).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Info logs an informational message
func (l *Logger) Info(msg string, fields ...Field) {
	write(l.zl.Info(), msg, fields)
}

// Warn logs a warning
func (l *Logger) Warn(msg string, fields ...Field) {
	write(l.zl.Warn(), msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, fields ...Field) {
	ev := l.zl.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	write(ev, msg, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	write(l.zl.Debug(), msg, fields)
}

// WithComponent returns a logger sharing the same outputs, tagged with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:   l.zl.With().Str("component", component).Logger(),
		file: l.file,
	}
}

// Close closes the underlying log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LogPath returns the path to the current log file, or "" without file output.
func (l *Logger) LogPath() string {
	if l.file == nil {
		return ""
	}
	return l.file.path()
}

func write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case float64:
			ev = ev.Float64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Str(f.Key, v.String())
		case error:
			ev = ev.AnErr(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}

// dailyFile is an io.Writer that switches to a new file each UTC day.
type dailyFile struct {
	dir           string
	prefix        string
	retentionDays int

	mu          sync.Mutex
	file        *os.File
	currentDate string
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotateLocked(); err != nil {
		fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		return 0, err
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *dailyFile) path() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file != nil {
		return d.file.Name()
	}
	return FilePath(d.dir, d.prefix, time.Now())
}

func (d *dailyFile) rotateIfNeeded() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked()
}

func (d *dailyFile) rotateLocked() error {
	today := time.Now().UTC().Format("2006-01-02")

	if d.currentDate == today && d.file != nil {
		return nil
	}

	if d.file != nil {
		d.file.Close()
		d.file = nil
	}

	file, err := os.OpenFile(FilePath(d.dir, d.prefix, time.Now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	d.file = file
	d.currentDate = today
	return nil
}

func (d *dailyFile) cleanOldLogs() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	prefix := d.prefix + "-"
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)

	var toDelete []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log")
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			toDelete = append(toDelete, filepath.Join(d.dir, name))
		}
	}

	sort.Strings(toDelete)

	for _, path := range toDelete {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old log file %s: %w", path, err)
		}
	}
	return nil
}

// FilePath returns the daily log file path for the given day.
func FilePath(dir, prefix string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", prefix, day.UTC().Format("2006-01-02")))
}
