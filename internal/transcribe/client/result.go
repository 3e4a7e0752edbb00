package client

import "strings"

// ResultKind tags the outcome of a transcription or translation call.
type ResultKind int

const (
	// NoResult means the call produced nothing usable: it failed, was
	// skipped locally, or retries were exhausted. Err carries the cause, if any.
	NoResult ResultKind = iota
	// Empty means the call succeeded but returned no text (silence).
	Empty
	// Unsupported means the call returned a payload that is not plain text.
	Unsupported
	// OK means Text holds non-blank text.
	OK
)

func (k ResultKind) String() string {
	switch k {
	case NoResult:
		return "no-result"
	case Empty:
		return "empty"
	case Unsupported:
		return "unsupported"
	case OK:
		return "ok"
	default:
		return "unknown"
	}
}

// Result is the closed set of call outcomes.
type Result struct {
	Kind ResultKind
	Text string
	Err  error
}

// TextResult returns OK for non-blank text and Empty otherwise.
func TextResult(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Kind: Empty}
	}
	return Result{Kind: OK, Text: text}
}

// Failed returns a NoResult carrying err.
func Failed(err error) Result {
	return Result{Kind: NoResult, Err: err}
}

// Ok reports whether r holds usable text.
func (r Result) Ok() bool {
	return r.Kind == OK
}
