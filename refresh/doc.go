// Package refresh coordinates credential refreshes so that at most one runs at
// a time.
//
// # Model
//
// A [Coordinator] is either idle or has one refresh in flight. The first caller
// that needs a refresh becomes the leader ([Coordinator.TryBegin]); callers
// arriving while the refresh runs are queued ([Coordinator.Enqueue]) and are
// released together, in arrival order, when the leader settles the outcome with
// [Coordinator.ResolveAll] or [Coordinator.RejectAll]. [Coordinator.Do] wraps
// the whole protocol and guarantees the in-flight flag is released on every
// exit path, panics included.
//
// # Architecture boundaries
//
// This package owns only the flag and the queue. It does not know how to call
// a refresh endpoint, where tokens are stored, or who is told about failures;
// the API client supplies those through the function it passes to Do.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Hold global state; every HTTP client owns its own Coordinator.
//   - Retry a failed refresh.
package refresh
