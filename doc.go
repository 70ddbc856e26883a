// Package goAuthClient manages the client side of a token-based session:
// it attaches credentials to API calls, refreshes them exactly once when many
// calls fail at the same time, replays the suspended calls, and tells the rest
// of the application when the session is over.
//
// A [Provider] is assembled by [Builder.Build] and is safe to use from multiple
// goroutines. Session state is owned by a reducer-driven state machine; session
// termination travels over a logout bus that the provider itself subscribes to.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Provider], [Builder], [Config], and
// value types ([User], [State], [MetricsSnapshot]). Leaf components live in
// subpackages: token (credential storage and validation), apiclient (HTTP layer and
// refresh), refresh (single-flight coordination), state, events, and monitor.
//
// # What this package must NOT do
//
//   - Let the HTTP layer navigate. apiclient only publishes on the bus; redirects
//     happen in the provider's subscriber through the injected [Navigator].
//   - Log raw tokens. Use token.Fingerprint.
//   - Verify token signatures. Expiry checks are advisory; the server decides.
package goAuthClient
