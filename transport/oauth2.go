package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/MrEthical07/authsession"
)

// OAuth2 performs the refresh_token grant against Config.Endpoint.TokenURL.
type OAuth2 struct {
	Config *oauth2.Config
	// Client is used for the token request. Defaults to http.DefaultClient.
	Client *http.Client
}

// NewOAuth2 returns an OAuth2 exchanger for cfg.
func NewOAuth2(cfg *oauth2.Config, client *http.Client) *OAuth2 {
	return &OAuth2{Config: cfg, Client: client}
}

// ExchangeRefreshToken implements authsession.Exchanger. A rejected grant is returned as
// *StatusError carrying the OAuth2 error code.
func (o *OAuth2) ExchangeRefreshToken(ctx context.Context, refreshToken string, headers http.Header) (authsession.TokenPair, error) {
	if o.Config == nil {
		return authsession.TokenPair{}, errors.New("transport: oauth2 config required")
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	if len(headers) > 0 {
		client = &http.Client{
			Transport:     &headerTransport{base: client.Transport, headers: headers},
			CheckRedirect: client.CheckRedirect,
			Jar:           client.Jar,
			Timeout:       client.Timeout,
		}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	tok, err := o.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			se := &StatusError{Code: re.ErrorCode, Body: string(re.Body)}
			if re.Response != nil {
				se.StatusCode = re.Response.StatusCode
			}
			return authsession.TokenPair{}, se
		}
		return authsession.TokenPair{}, fmt.Errorf("transport: oauth2 refresh failed: %w", err)
	}

	return authsession.TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}
