// Package audit implements async event dispatching for security-relevant occurrences.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — immutable security record with timestamp, type, severity, subject, context.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit — that responsibility belongs to the Core and its components.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import shopauth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
