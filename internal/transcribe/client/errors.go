package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// StatusError is returned by HTTP backends for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Body)
}

// ErrorClass groups failures by how the retry policy treats them.
type ErrorClass int

const (
	// ClassUnknown is any failure without a recognised cause. Not retried.
	ClassUnknown ErrorClass = iota
	// ClassTransient covers 5xx responses and network failures. Retried.
	ClassTransient
	// ClassBadRequest covers malformed or rejected requests. Not retried.
	ClassBadRequest
	// ClassAuth covers rejected credentials. Not retried.
	ClassAuth
	// ClassRateLimited covers quota and rate limits. Not retried.
	ClassRateLimited
	// ClassCanceled means the context ended. Not retried.
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassBadRequest:
		return "bad-request"
	case ClassAuth:
		return "auth"
	case ClassRateLimited:
		return "rate-limited"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether the class is worth another attempt.
func (c ErrorClass) Retryable() bool {
	return c == ClassTransient
}

// StatusCode extracts the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}

	return 0, false
}

// Classify maps err onto the failure taxonomy. A bare context error is
// ClassCanceled; a network timeout is ClassTransient.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	// http.Client timeouts also match context.DeadlineExceeded.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}

	if status, ok := StatusCode(err); ok {
		return classifyStatus(status)
	}

	if errors.As(err, &netErr) {
		return ClassTransient
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "send request:") {
		return ClassTransient
	}

	return ClassUnknown
}

// classify reports ClassCanceled only when ctx itself has ended.
func classify(ctx context.Context, err error) ErrorClass {
	if ctx.Err() != nil {
		return ClassCanceled
	}
	return Classify(err)
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500 && status < 600:
		return ClassTransient
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 400 && status < 500:
		return ClassBadRequest
	default:
		return ClassUnknown
	}
}

// Hint returns operator guidance for a failure, or "" when there is none.
func Hint(err error) string {
	switch Classify(err) {
	case ClassAuth:
		return "authentication issue: check your OpenAI API key"
	case ClassRateLimited:
		return "rate limiting issue: check your OpenAI API remaining credits"
	case ClassBadRequest:
		if status, _ := StatusCode(err); status == http.StatusRequestEntityTooLarge {
			return "the API rejected the upload size"
		}
		return "this usually means the API rejected our request format"
	default:
		return ""
	}
}
