// Package internal holds the private building blocks of authsession.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flight: the single-flight refresh cycle executor
//   - flows: pure-function orchestration of the refresh cycle
//   - metrics: lock-free counters and the refresh latency histogram
//   - renewal: the proactive renewal timer
//
// # What this package must NOT do
//
//   - Export types that appear in the public authsession API except through root aliases.
//   - Be imported by any package outside the authsession module.
package internal
