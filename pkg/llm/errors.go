package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies completion-service failures.
type ErrorType string

const (
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeServer     ErrorType = "server"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error is a structured transport error from the completion service.
// Transport failures always propagate to the caller; the Retryable flag
// is acted on only outside the pipeline, by startup warmup.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes a raw client error into a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: ErrorTypeTimeout, Message: "request deadline exceeded", Retryable: true, Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Type: ErrorTypeTimeout, Message: "network timeout", Retryable: true, Cause: err}
		}
		return &Error{Type: ErrorTypeConnection, Message: "network error", Retryable: true, Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return &Error{Type: ErrorTypeConnection, Message: "endpoint unreachable", Retryable: true, Cause: err}
	case strings.Contains(msg, "timeout"):
		return &Error{Type: ErrorTypeTimeout, Message: "request timed out", Retryable: true, Cause: err}
	}

	return &Error{Type: ErrorTypeUnknown, Message: err.Error(), Cause: err}
}

func classifyStatus(status int, cause error) *Error {
	switch {
	case status == 401 || status == 403:
		return &Error{Type: ErrorTypeAuth, Message: "authentication failed", StatusCode: status, Cause: cause}
	case status == 429:
		return &Error{Type: ErrorTypeRateLimit, Message: "rate limited", Retryable: true, StatusCode: status, Cause: cause}
	case status >= 500:
		return &Error{Type: ErrorTypeServer, Message: "server error", Retryable: true, StatusCode: status, Cause: cause}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: "request failed", StatusCode: status, Cause: cause}
	}
}
