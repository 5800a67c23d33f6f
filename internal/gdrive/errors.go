// Package gdrive provides an HTTP client for the Google Drive v3 REST API
// with per-operation retry policies, timeout-bounded attempts, and error
// classification.
package gdrive

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, gdrive.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("gdrive: bad request")
	ErrUnauthorized = errors.New("gdrive: unauthorized")
	ErrForbidden    = errors.New("gdrive: forbidden")
	ErrNotFound     = errors.New("gdrive: not found")
	ErrThrottled    = errors.New("gdrive: rate limited")
	ErrServerError  = errors.New("gdrive: server error")

	// ErrTimeout marks an attempt budget exhausted on per-attempt deadlines.
	// The router maps it to 504 so clients can distinguish a slow upstream
	// from an internal failure.
	ErrTimeout = errors.New("gdrive: upstream timed out")

	// ErrTransport marks an attempt budget exhausted on connection-level
	// failures (reset, refused, DNS). Synthesized as 502 at the boundary.
	ErrTransport = errors.New("gdrive: upstream unreachable")
)

// maxLoggedBody caps how much of an upstream error body is kept for logs
// and error messages. Upstream bodies can be large HTML pages.
const maxLoggedBody = 512

// DriveError wraps a sentinel error with the upstream HTTP status code and
// a truncated copy of the API error body for diagnosis.
type DriveError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("gdrive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *DriveError) Unwrap() error {
	return e.Err
}

// newDriveError builds a DriveError for a non-success upstream response.
// The body is truncated to maxLoggedBody bytes.
func newDriveError(status int, body []byte) *DriveError {
	return &DriveError{
		StatusCode: status,
		Message:    truncate(string(body), maxLoggedBody),
		Err:        classifyStatus(status),
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "...(truncated)"
}
