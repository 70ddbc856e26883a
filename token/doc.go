// Package token reads, validates, and stores the opaque bearer credentials of a
// client session.
//
// # Validation
//
// Validation is advisory only. A token must have exactly three dot-separated
// segments and its payload segment must decode to a JSON object carrying numeric
// iat and exp claims; signatures are never checked here because verification is
// the server's job. [Validate], [Expiration], and [IsExpiringSoon] answer the
// three questions the request layer asks about a token.
//
// # Storage
//
// [Store] abstracts where the access/refresh pair lives. [MemoryStore] keeps it
// in process, [CookieStore] keeps it in the HTTP cookie jar shared with the API
// client, and [RedisStore] keeps it in Redis so several processes can share one
// session.
//
// # What this package must NOT do
//
//   - Perform network calls other than store I/O.
//   - Refresh, clear, or otherwise act on a session; callers decide.
//   - Log or return raw tokens in errors (use [Fingerprint]).
package token
