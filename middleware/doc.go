// Package middleware gates server-rendered pages on a goAuthClient session.
//
// [Guard] is meant for a backend-for-frontend that holds one provider per
// user session. On the first page request it mounts the provider (one
// session check), lets configured auth routes through, and answers every
// other request without an authenticated session with a 303 to the login
// page. The signed-in user is put on the request context.
//
// # What this package must NOT do
//
//   - Call the auth API itself (the provider owns all I/O).
//   - Touch stored credentials.
package middleware
