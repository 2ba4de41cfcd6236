// Package middleware adapts an authsession.Engine to net/http clients.
//
// # Transports
//
//   - [RoundTripper] attaches the current bearer token to every outgoing request and, on
//     a 401, joins the engine's shared refresh cycle and replays the request once.
//
// Requests whose body cannot be re-read (no GetBody) are never replayed; the 401 is
// returned to the caller unchanged. When renewal fails, RoundTrip returns the refresh
// error and no response.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Refresh, rotation and
// session termination are decided by the Engine.
//
// # What this package must NOT do
//
//   - Exchange refresh tokens itself.
//   - Replay a request more than once.
//   - Read or write credential persistence.
package middleware
