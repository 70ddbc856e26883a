package goAuthClient

import (
	"errors"

	"github.com/MrEthical07/goAuthClient/apiclient"
	"github.com/MrEthical07/goAuthClient/refresh"
)

var (
	// ErrTokenMalformed marks a stored access token that failed validation.
	ErrTokenMalformed = apiclient.ErrTokenMalformed
	// ErrRefreshRejected is returned when the server refused a refresh; the
	// session has ended.
	ErrRefreshRejected = apiclient.ErrRefreshRejected
	// ErrAuthenticationRequired is returned when no usable refresh token
	// exists; the session has ended.
	ErrAuthenticationRequired = apiclient.ErrAuthenticationRequired
	// ErrNetworkTimeout wraps calls that exceeded their time budget.
	ErrNetworkTimeout = apiclient.ErrNetworkTimeout
	// ErrRateLimited is matched by 429 responses.
	ErrRateLimited = apiclient.ErrRateLimited
	// ErrAccessDenied is matched by 403 responses.
	ErrAccessDenied = apiclient.ErrAccessDenied
	// ErrDoubleUnauthorized is returned when a replayed call is rejected again.
	ErrDoubleUnauthorized = apiclient.ErrDoubleUnauthorized
	// ErrUnauthorized is matched by 401 responses from login.
	ErrUnauthorized = apiclient.ErrUnauthorized
	// ErrRefreshAborted is delivered to waiters of a refresh that ended
	// without an outcome.
	ErrRefreshAborted = refresh.ErrAborted
	// ErrProviderClosed is returned by operations on a closed provider.
	ErrProviderClosed = errors.New("provider closed")
)

// APIError is the error type of non-success API responses.
type APIError = apiclient.APIError

// IsSessionTerminated reports whether err ended the session. Such errors have
// already been broadcast on the logout bus.
func IsSessionTerminated(err error) bool {
	return apiclient.IsSessionTerminated(err)
}

// broadcast reports whether the HTTP layer already published an event for err.
func broadcast(err error) bool {
	return IsSessionTerminated(err) || errors.Is(err, ErrAccessDenied)
}
