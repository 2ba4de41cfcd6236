package authsession

import "net/http"

const bearerPrefix = "Bearer "

// Authorize attaches the current access token to req as a bearer credential. Without a
// session it removes any Authorization header and reports false.
func (e *Engine) Authorize(req *Request) bool {
	if req == nil {
		return false
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	c, ok := e.Credential()
	if !ok {
		req.Header.Del("Authorization")
		req.token = ""
		return false
	}
	req.Header.Set("Authorization", bearerPrefix+c.AccessToken)
	req.token = c.AccessToken
	return true
}

// AuthorizeHTTP is Authorize for a plain *http.Request. It returns the attached token so
// the caller can pass it to [Engine.RenewAfterRejection] if the request is rejected.
func (e *Engine) AuthorizeHTTP(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}

	c, ok := e.Credential()
	if !ok {
		r.Header.Del("Authorization")
		return "", false
	}
	r.Header.Set("Authorization", bearerPrefix+c.AccessToken)
	return c.AccessToken, true
}
