package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/MrEthical07/authsession"
)

const defaultMaxBodyBytes = 1 << 20

// ErrMalformedResponse is returned when a 2xx exchange response cannot be decoded.
var ErrMalformedResponse = errors.New("transport: malformed token response")

// HTTP is a JSON refresh exchange and a generic request issuer over one *http.Client.
type HTTP struct {
	Client *http.Client
	// RefreshURL receives POST {"refresh_token": "..."}.
	RefreshURL string
	// BaseURL resolves relative request URLs in Issue.
	BaseURL string
	// AuthFailureStatuses are the statuses Issue reports as *authsession.AuthFailure.
	// Defaults to 401.
	AuthFailureStatuses []int
	// MaxBodyBytes caps how much of a response body is read. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// NewHTTP returns an HTTP transport using client, or http.DefaultClient when nil.
func NewHTTP(client *http.Client, refreshURL string) *HTTP {
	return &HTTP{Client: client, RefreshURL: refreshURL}
}

type tokenResponse struct {
	AccessToken       string         `json:"access_token"`
	RefreshToken      string         `json:"refresh_token"`
	AccessTokenCamel  string         `json:"accessToken"`
	RefreshTokenCamel string         `json:"refreshToken"`
	Data              *tokenResponse `json:"data"`
	Error             string         `json:"error"`
}

func (t *tokenResponse) pair() authsession.TokenPair {
	if t.Data != nil && t.AccessToken == "" && t.AccessTokenCamel == "" {
		return t.Data.pair()
	}
	p := authsession.TokenPair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if p.AccessToken == "" {
		p.AccessToken = t.AccessTokenCamel
	}
	if p.RefreshToken == "" {
		p.RefreshToken = t.RefreshTokenCamel
	}
	return p
}

// ExchangeRefreshToken implements authsession.Exchanger. An empty refresh_token in the
// response is returned as is; the engine then keeps the previous one.
func (h *HTTP) ExchangeRefreshToken(ctx context.Context, refreshToken string, headers http.Header) (authsession.TokenPair, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return authsession.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.RefreshURL, bytes.NewReader(payload))
	if err != nil {
		return authsession.TokenPair{}, fmt.Errorf("transport: build refresh request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client().Do(req)
	if err != nil {
		return authsession.TokenPair{}, fmt.Errorf("transport: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody()))
	if err != nil {
		return authsession.TokenPair{}, fmt.Errorf("transport: read refresh response: %w", err)
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return authsession.TokenPair{}, &StatusError{
			StatusCode: resp.StatusCode,
			Code:       tr.Error,
			Body:       string(body),
		}
	}
	if decodeErr != nil {
		return authsession.TokenPair{}, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}

	pair := tr.pair()
	if pair.AccessToken == "" {
		return authsession.TokenPair{}, fmt.Errorf("%w: missing access token", ErrMalformedResponse)
	}
	return pair, nil
}

// Issue implements authsession.Issuer. Statuses listed in AuthFailureStatuses become an
// *authsession.AuthFailure wrapping a *StatusError; every other status is a Response.
func (h *HTTP) Issue(ctx context.Context, r *authsession.Request) (*authsession.Response, error) {
	target, err := h.resolve(r.URL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.BodyReader())
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody()))
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	if slices.Contains(h.authStatuses(), resp.StatusCode) {
		return nil, &authsession.AuthFailure{
			StatusCode: resp.StatusCode,
			Err:        &StatusError{StatusCode: resp.StatusCode, Body: string(body)},
		}
	}

	return &authsession.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTP) maxBody() int64 {
	if h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h *HTTP) authStatuses() []int {
	if len(h.AuthFailureStatuses) > 0 {
		return h.AuthFailureStatuses
	}
	return []int{http.StatusUnauthorized}
}

func (h *HTTP) resolve(raw string) (string, error) {
	if h.BaseURL == "" {
		return raw, nil
	}
	base, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", fmt.Errorf("transport: bad base url: %w", err)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("transport: bad request url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
