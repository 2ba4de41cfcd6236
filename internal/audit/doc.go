// Package audit implements async dispatch of session lifecycle events.
//
// # Components
//
//   - [Sink] is the interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] is the structured record: timestamp, type, session epoch, refresh cycle,
//     request ID, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. The Engine decides which events to
// emit and when.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on session state.
//   - Import authsession or any sibling internal package.
//   - Carry token material. Events never include access or refresh tokens.
package audit
