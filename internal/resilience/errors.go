package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// StatusError carries the HTTP status of a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// NewStatusError wraps an HTTP status as an error.
func NewStatusError(statusCode int, status string) *StatusError {
	return &StatusError{StatusCode: statusCode, Status: status}
}

// StatusCode extracts the HTTP status from an error chain, 0 if none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsRetryableStatus reports whether an HTTP status is retried in place:
// rate limiting (429) and upstream gateway timeout (504). Every other
// error status is fatal for its (partition, page).
func IsRetryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode == 504
}

// IsTimeout reports whether the error (or any error in its chain) is a
// network timeout. Non-timeout transport errors (DNS failure, connection
// reset) are fatal, not retryable.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Wrapped client errors that lose the net.Error interface.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"i/o timeout",
		"tls handshake timeout",
		"timeout awaiting response headers",
		"context deadline exceeded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
