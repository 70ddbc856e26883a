// Package events carries session-termination broadcasts from the HTTP layer to
// whoever reacts to them (state reset, navigation).
//
// The request layer publishes an [Event] on the [Topic] with a [Reason] and
// never calls navigation itself. Subscribers receive events on buffered
// channels; a subscriber that falls behind loses events instead of blocking
// the publisher, and the loss is counted.
package events
