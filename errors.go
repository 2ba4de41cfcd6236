package authsession

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is matched by every error that means the local session is gone and
	// the user has to log in again.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNoSession is returned when a refresh is requested without a stored refresh token.
	ErrNoSession = fmt.Errorf("%w: no session", ErrUnauthenticated)
	// ErrRefreshTokenExpired is returned when the refresh token is past its lifetime. No
	// network call is made.
	ErrRefreshTokenExpired = fmt.Errorf("%w: refresh token expired", ErrUnauthenticated)
	// ErrRefreshTransport covers exchange failures: network errors, non-2xx responses,
	// timeouts and malformed responses.
	ErrRefreshTransport = errors.New("refresh exchange failed")
	// ErrCredentialPersist is returned when renewed credentials could not be stored.
	ErrCredentialPersist = errors.New("credential persistence failed")
	// ErrRequestAuth is returned when a request is rejected for authorization after its one
	// replay, or when it is rejected a second time.
	ErrRequestAuth = errors.New("request authorization failed")
	// ErrSessionSuperseded is returned to refresh callers whose cycle belonged to a session
	// that was replaced by a new login or terminated while the exchange was in flight.
	ErrSessionSuperseded = errors.New("session superseded")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrNoIssuer is returned by Do when the Engine was built without an Issuer.
	ErrNoIssuer = errors.New("no request issuer configured")
)
