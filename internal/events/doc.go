// Package events implements async dispatching of session lifecycle events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record of a login, logout, refresh or session clear.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the session manager does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import moodjournal or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package events
