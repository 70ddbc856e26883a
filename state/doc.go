// Package state holds the global session state of a client and the only
// transitions allowed to change it.
//
// [Reduce] is a pure, total function from (State, Action) to the next State.
// [Machine] owns the current value, applies actions under a lock, and notifies
// listeners after each transition.
package state
