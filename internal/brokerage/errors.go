package brokerage

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means a call was still unauthorized after the single
	// refresh-and-retry attempt. It is surfaced, never retried again.
	ErrUnauthorized = errors.New("brokerage call unauthorized after credential refresh")

	// ErrNetwork means transport or name resolution failed, including after
	// the one fallback-host attempt.
	ErrNetwork = errors.New("brokerage transport failure")

	// ErrClientClosed means the request queue has been shut down.
	ErrClientClosed = errors.New("brokerage client is closed")
)

// APIError wraps any non-2xx brokerage response that is not an
// authorization failure. The status and body are carried so callers can
// log or inspect them; nothing is swallowed.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brokerage API returned status %d: %s", e.StatusCode, e.Body)
}
