//go:build integration
// +build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/credential"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/transport"
)

const signingKey = "integration-signing-key-0123456789"

// tokenAPI is a token endpoint with refresh rotation and reuse detection, plus a protected
// /api route that only accepts the newest access token.
type tokenAPI struct {
	t   *testing.T
	jwt *jwt.Signer

	mu      sync.Mutex
	refresh string
	gen     uint64
	reused  bool

	exchanges atomic.Int32
	hits      atomic.Int32
}

func newTokenAPI(t *testing.T, ttl time.Duration) (*tokenAPI, *httptest.Server) {
	t.Helper()
	m, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:       ttl,
		Algorithm: jwt.HS256,
		Secret:    []byte(signingKey),
		Issuer:    "integration",
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	a := &tokenAPI{t: t, jwt: m}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", a.token)
	mux.HandleFunc("/api", a.api)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return a, srv
}

func (a *tokenAPI) login() authsession.TokenPair {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mintLocked()
}

func (a *tokenAPI) mintLocked() authsession.TokenPair {
	access, err := a.jwt.Mint("u1", "sid-1", a.gen)
	if err != nil {
		a.t.Errorf("Mint: %v", err)
	}
	a.refresh = uuid.NewString()
	return authsession.TokenPair{AccessToken: access, RefreshToken: a.refresh}
}

// revoke invalidates every access token issued so far.
func (a *tokenAPI) revoke() {
	a.mu.Lock()
	a.gen++
	a.mu.Unlock()
}

func (a *tokenAPI) token(w http.ResponseWriter, r *http.Request) {
	a.exchanges.Add(1)
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reused || body.RefreshToken != a.refresh {
		a.reused = true
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		return
	}
	a.gen++
	pair := a.mintLocked()
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (a *tokenAPI) api(w http.ResponseWriter, r *http.Request) {
	a.hits.Add(1)
	claims, err := a.jwt.Verify(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()
	if err != nil || claims.Generation != gen {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_, _ = io.WriteString(w, "ok")
}

func (a *tokenAPI) reuseDetected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reused
}

func newEngine(t *testing.T, srv *httptest.Server, backend credential.Persistence, mutate func(*authsession.Config)) *authsession.Engine {
	t.Helper()

	cfg := authsession.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	h := &transport.HTTP{Client: srv.Client(), RefreshURL: srv.URL + "/token", BaseURL: srv.URL}
	engine, err := authsession.New().
		WithConfig(cfg).
		WithExchanger(h).
		WithIssuer(h).
		WithPersistence(backend).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func get(t *testing.T, engine *authsession.Engine) (*authsession.Response, error) {
	t.Helper()
	return engine.Do(context.Background(), authsession.NewRequest(http.MethodGet, "/api", nil))
}
