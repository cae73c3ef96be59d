package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind partitions adapter failures into the four classes the engine
// reacts to. Everything that is not a timeout, auth failure, or rate limit is
// Upstream.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindAuthFailed  ErrorKind = "auth_failed"
	KindRateLimited ErrorKind = "rate_limited"
	KindUpstream    ErrorKind = "upstream"
)

// Error is the uniform adapter error. Provider-specific error types stay
// below this boundary.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Provider is the registry key of the adapter that failed.
	Provider string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("model provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a classified adapter error.
func NewError(provider string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// KindOf returns the classified kind of err, or KindUpstream when err is not
// a [*Error].
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindUpstream
}

// ClassifyStatus maps an HTTP status code to an [ErrorKind].
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuthFailed
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindTimeout
	default:
		return KindUpstream
	}
}

// Classify inspects err for context and network timeouts and for well-known
// status substrings emitted by SDKs that do not expose structured errors.
// Adapters with structured errors should prefer [ClassifyStatus].
func Classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication"):
		return KindAuthFailed
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota"):
		return KindRateLimited
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	}
	return KindUpstream
}
