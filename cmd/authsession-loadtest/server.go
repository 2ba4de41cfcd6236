package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authsession/jwt"
)

// authServer is an in-process token endpoint with rotating refresh tokens. Presenting a
// refresh token twice revokes the family. Access tokens carry the generation they were
// minted for and go stale once the server bumps it.
type authServer struct {
	jwt *jwt.Signer
	sid string

	mu       sync.Mutex
	refresh  string
	gen      uint64
	reused   bool
	exchange atomic.Int64
	rejected atomic.Int64
	served   atomic.Int64
}

func newAuthServer(m *jwt.Signer) *authServer {
	return &authServer{jwt: m, sid: uuid.NewString()}
}

func (s *authServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.login)
	mux.HandleFunc("/token", s.token)
	mux.HandleFunc("/api", s.api)
	return mux
}

// revoke makes every outstanding access token stale.
func (s *authServer) revoke() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

func (s *authServer) mintLocked() (map[string]string, error) {
	access, err := s.jwt.Mint("loadtest", s.sid, s.gen)
	if err != nil {
		return nil, err
	}
	s.refresh = uuid.NewString()
	return map[string]string{"access_token": access, "refresh_token": s.refresh}, nil
}

func (s *authServer) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	s.reused = false
	body, err := s.mintLocked()
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *authServer) token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	s.exchange.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reused || req.RefreshToken != s.refresh {
		s.reused = true
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}
	s.gen++
	body, err := s.mintLocked()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *authServer) api(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := s.jwt.Verify(raw)
	if err != nil {
		s.rejected.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	current := s.gen
	s.mu.Unlock()
	if claims.Generation != current {
		s.rejected.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.served.Add(1)
	writeJSON(w, http.StatusOK, map[string]string{"at": time.Now().UTC().Format(time.RFC3339Nano)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
