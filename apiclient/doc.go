// Package apiclient is the HTTP layer of a client session: it attaches
// credentials to outgoing calls, recovers from expired access tokens by
// refreshing once and replaying, and reports unrecoverable session loss on the
// logout bus.
//
// # Request lifecycle
//
// [Interceptor] runs before every request and adds the bearer header when the
// stored access token is valid. [Client.Do] inspects the response:
//
//   - 401: the call joins (or starts) the single in-flight refresh and is
//     replayed once with the new token. A replay that is rejected again fails
//     with [ErrDoubleUnauthorized]; no second refresh is attempted.
//   - 403: [events.ReasonAccessDenied] is published; refresh state is untouched.
//   - 429: an [*APIError] carrying RetryAfter is returned; nothing is retried.
//
// # Architecture boundaries
//
// The client never navigates or touches UI state. Session termination is
// reported only through the [events.Bus]; whoever owns navigation subscribes
// to it.
package apiclient
