// Package jwt reads and mints JWT access tokens.
//
// Clients use [Expiry] and [Inspect] to read the exp and iat claims of an access token
// without verifying its signature; the client only schedules renewal from them and never
// trusts them for authorization. [Signer] mints and verifies HS256 or RS256 tokens and backs the fake
// authorization servers used by tests and the load-test binary.
package jwt
