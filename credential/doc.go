// Package credential holds the client-side session credential: the access/refresh token
// pair, its issuance timestamp, the lifetime policy that decides when it must be renewed,
// and the write-through [Store] that keeps it in durable key/value persistence.
//
// # Architecture boundaries
//
// This package owns presence pairing (both tokens or neither) and the expiry arithmetic.
// Deciding *when* to refresh and performing the exchange belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authsession, transport, or any network client.
//   - Start goroutines or timers.
//   - Interpret token contents (see package jwt for that).
package credential
