package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a response the server answered with a 4xx/5xx status.
// Message holds the server's own wording when the body carried one, so
// the UI can show e.g. a duplicate-username or no-copies-available
// message verbatim next to the acting control.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// IsCanceled reports whether err is the result of intentional request
// cancellation (superseded read, view teardown, deadline). Canceled
// requests are never surfaced to the user.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsConflict reports a 409 rejection, e.g. borrowing a book with no
// available copies or reusing a username.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsUnauthorized reports a 401 rejection: the session is gone or the
// token was refused.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRetryable reports whether the failure is a transport-level one
// (offline, timeout, unreachable) where retrying the same request makes
// sense. Server rejections and cancellations are not retryable.
func IsRetryable(err error) bool {
	if err == nil || IsCanceled(err) {
		return false
	}
	var apiErr *Error
	return !errors.As(err, &apiErr)
}

// Message extracts the most useful text out of err, falling back when
// there is none.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return fallback
}
