// Package monitor refreshes a session before its access token expires.
//
// A [Monitor] polls a [Session] on a fixed interval. When the access token is
// within the threshold of expiry it flags the session as expiring and, unless
// another refresh or an auth check is already running, triggers a refresh
// through the session's single-flight path.
package monitor
