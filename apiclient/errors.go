package apiclient

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTokenMalformed marks a stored access token that failed validation and was discarded.
	ErrTokenMalformed = errors.New("access token malformed")
	// ErrRefreshRejected is returned to every caller waiting on a refresh the server refused.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrAuthenticationRequired is returned when no usable refresh token exists.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrNetworkTimeout wraps requests that exceeded their time budget.
	ErrNetworkTimeout = errors.New("network timeout")
	// ErrRateLimited is the kind of 429 responses.
	ErrRateLimited = errors.New("rate limited")
	// ErrAccessDenied is the kind of 403 responses.
	ErrAccessDenied = errors.New("access denied")
	// ErrDoubleUnauthorized is returned when a replayed call is rejected again.
	ErrDoubleUnauthorized = errors.New("unauthorized after refresh")
	// ErrUnauthorized is the kind of 401 responses outside the replay path.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRequestFailed is the kind of other non-2xx responses from auth endpoints.
	ErrRequestFailed = errors.New("request failed")
)

// IsSessionTerminated reports whether err ended the session. The logout
// broadcast for such errors has already been published.
func IsSessionTerminated(err error) bool {
	return errors.Is(err, ErrRefreshRejected) || errors.Is(err, ErrAuthenticationRequired)
}

// APIError describes a non-success HTTP response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is the server's back-off hint for 429 responses.
	RetryAfter time.Duration

	kind error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg = "[" + e.Code + "] " + msg
	}
	if e.kind != nil {
		msg = e.kind.Error() + ": " + msg
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func (e *APIError) withKind(kind error) *APIError {
	e.kind = kind
	return e
}
