package middleware

import (
	"context"
	"io"
	"net/http"

	"github.com/MrEthical07/authsession"
)

// Session is the part of the Engine a RoundTripper needs.
type Session interface {
	AuthorizeHTTP(r *http.Request) (string, bool)
	RenewAfterRejection(ctx context.Context, rejectedAccessToken string) (authsession.Credential, error)
}

// RoundTripper is an http.RoundTripper that authorizes requests from a Session.
type RoundTripper struct {
	// Base performs the actual round trip. http.DefaultTransport when nil.
	Base http.RoundTripper
	// Session supplies tokens. Typically an *authsession.Engine.
	Session Session
	// RejectStatuses are the statuses that trigger a refresh and replay. 401 when empty.
	RejectStatuses []int
}

// NewRoundTripper wraps base with session authorization.
func NewRoundTripper(base http.RoundTripper, session Session) *RoundTripper {
	return &RoundTripper{Base: base, Session: session}
}

// Client returns an *http.Client using rt.
func (rt *RoundTripper) Client() *http.Client {
	return &http.Client{Transport: rt}
}

// RoundTrip implements http.RoundTripper. The caller's request is never mutated. A
// rejected request is replayed at most once. When renewal fails the rejected response is
// discarded and the refresh error is returned. A replay that is rejected again is
// returned as is.
func (rt *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Session == nil {
		return rt.base().RoundTrip(r)
	}

	first := r.Clone(r.Context())
	token, _ := rt.Session.AuthorizeHTTP(first)

	resp, err := rt.base().RoundTrip(first)
	if err != nil || !rt.rejected(resp.StatusCode) || !replayable(r) {
		return resp, err
	}

	if _, rerr := rt.Session.RenewAfterRejection(authsession.WithTrigger(r.Context(), "reactive"), token); rerr != nil {
		drain(resp)
		return nil, rerr
	}

	second := r.Clone(r.Context())
	if r.GetBody != nil {
		body, berr := r.GetBody()
		if berr != nil {
			return resp, nil
		}
		second.Body = body
	}
	if _, ok := rt.Session.AuthorizeHTTP(second); !ok {
		return resp, nil
	}

	drain(resp)
	return rt.base().RoundTrip(second)
}

func (rt *RoundTripper) base() http.RoundTripper {
	if rt.Base != nil {
		return rt.Base
	}
	return http.DefaultTransport
}

func (rt *RoundTripper) rejected(status int) bool {
	if len(rt.RejectStatuses) == 0 {
		return status == http.StatusUnauthorized
	}
	for _, s := range rt.RejectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func replayable(r *http.Request) bool {
	return r.Body == nil || r.Body == http.NoBody || r.GetBody != nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
