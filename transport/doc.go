// Package transport adapts net/http and golang.org/x/oauth2 to the authsession
// Exchanger and Issuer interfaces.
//
// [HTTP] posts the refresh token as JSON and issues arbitrary requests through an
// *http.Client. [OAuth2] performs an RFC 6749 refresh_token grant. Both report a non-2xx
// exchange as *[StatusError], which matches [ErrExchangeRejected].
package transport
