// Package authsession keeps a client's short-lived access credential valid and makes
// concurrent outgoing requests safe against token expiry races.
//
// An [Engine] holds one session. It renews the access token shortly before it expires,
// renews it after a request is rejected, and replays rejected requests once with the new
// token. At most one refresh exchange is in flight at any time: every goroutine that needs
// a renewal joins the same cycle and observes the same result. When renewal is impossible
// the session is terminated as a unit and subscribers are notified once.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authsession is the public surface. It exposes [Engine], [Builder], [Config] and value
// types. The refresh flow, single-flight executor, renewal scheduler, audit dispatch and
// metric storage live under internal/. Network access goes through the [Exchanger] and
// [Issuer] interfaces; package transport provides HTTP and OAuth2 implementations and
// package middleware an http.RoundTripper.
//
// # What this package must NOT do
//
//   - Retry a failed refresh exchange on its own. The next caller or timer decides.
//   - Replay a request more than once.
//   - Log, audit or otherwise expose token values.
//   - Import transport, middleware or any package that imports authsession.
package authsession
