// Package status summarises pipeline activity from the daily JSON log file.
package status

import (
	"bufio"
	"encoding/json"
	"os"
	"path"
	"strings"
	"time"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// processedMessage is the message the pipeline logs for each finished segment.
const processedMessage = "segment processed"

// maxLineBytes bounds a single log line; panic entries carry stack traces.
const maxLineBytes = 1 << 20

// Stats holds parsed statistics from the log file.
type Stats struct {
	SegmentsProcessed int
	Errors            int
	Warnings          int
	LastProcessed     *ProcessedSegment
}

// ProcessedSegment describes the most recent processed segment.
type ProcessedSegment struct {
	Timestamp  time.Time
	Segment    string
	Translated bool
}

// entry is the subset of a log line that status reads.
type entry struct {
	Level      string    `json:"level"`
	Time       time.Time `json:"time"`
	Message    string    `json:"message"`
	Segment    string    `json:"segment"`
	Translated bool      `json:"translated"`
}

// TodayLogPath returns the path to today's log file in dir.
func TodayLogPath(dir string) string {
	return logging.FilePath(dir, "boquer", time.Now())
}

// ParseToday parses today's log file in dir.
func ParseToday(dir string) (*Stats, error) {
	return ParseLogFile(TodayLogPath(dir))
}

// ParseLogFile parses a log file and returns statistics.
// Returns empty stats if the file doesn't exist. Lines that are not JSON are ignored.
func ParseLogFile(path string) (*Stats, error) {
	stats := &Stats{}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		var e entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}

		switch e.Level {
		case "error", "fatal", "panic":
			stats.Errors++
		case "warn":
			stats.Warnings++
		}

		if e.Message == processedMessage {
			stats.SegmentsProcessed++
			stats.LastProcessed = &ProcessedSegment{
				Timestamp:  e.Time,
				Segment:    e.Segment,
				Translated: e.Translated,
			}
		}
	}

	return stats, scanner.Err()
}

// FormatTimestamp formats a timestamp for display.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

// BaseName returns the last element of a segment path or URL.
func BaseName(p string) string {
	return path.Base(strings.TrimSuffix(p, "/"))
}
