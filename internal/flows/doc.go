// Package flows contains pure-function orchestrators for the Engine's refresh
// operation.
//
// RunRefresh accepts a typed dependency struct and returns a result carrying a failure
// kind, so the root package alone decides which exported error a failure maps to. This
// keeps the Engine type thin and lets every failure branch be tested with fake
// dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store and the token exchanger. They do NOT
// own either resource, and they do not terminate sessions: termination is the Engine's
// reaction to a failure kind.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authsession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
