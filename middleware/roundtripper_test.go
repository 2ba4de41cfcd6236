package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authsession"
)

type tokenServer struct {
	mu    sync.Mutex
	valid string
	// frozen keeps valid unchanged across exchanges.
	frozen    bool
	fail      error
	exchanges atomic.Int32
	hits      atomic.Int32
	bodies    []string
}

func (s *tokenServer) handler(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, string(b))
	valid := s.valid
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_, _ = io.WriteString(w, "ok")
}

func (s *tokenServer) exchange(_ context.Context, refresh string, _ http.Header) (authsession.TokenPair, error) {
	s.exchanges.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return authsession.TokenPair{}, s.fail
	}
	if !s.frozen {
		s.valid = "A2"
	}
	return authsession.TokenPair{AccessToken: "A2", RefreshToken: refresh + "+"}, nil
}

func newEngine(t *testing.T, ts *tokenServer) *authsession.Engine {
	t.Helper()
	cfg := authsession.DefaultConfig()
	cfg.Renewal.Enabled = false

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	engine, err := authsession.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithExchanger(authsession.ExchangerFunc(ts.exchange)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	require.NoError(t, engine.StartSession(context.Background(), authsession.TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	return engine
}

func TestRoundTripperAttachesToken(t *testing.T) {
	ts := &tokenServer{valid: "A1"}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	client := NewRoundTripper(srv.Client().Transport, newEngine(t, ts)).Client()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, ts.exchanges.Load())
}

func TestRoundTripperRefreshesAndReplaysOnce(t *testing.T) {
	ts := &tokenServer{valid: "A0"}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	client := NewRoundTripper(srv.Client().Transport, newEngine(t, ts)).Client()
	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, ts.exchanges.Load())
	require.EqualValues(t, 2, ts.hits.Load())
	require.Equal(t, []string{"payload", "payload"}, ts.bodies)
}

func TestRoundTripperConcurrentRejectionsShareOneExchange(t *testing.T) {
	ts := &tokenServer{valid: "A0"}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	client := NewRoundTripper(srv.Client().Transport, newEngine(t, ts)).Client()

	const n = 8
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if err != nil {
				codes <- -1
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		require.Equal(t, http.StatusOK, code)
	}
	// late rejections carry a stale token and reuse the rotated credential
	require.EqualValues(t, 1, ts.exchanges.Load())
}

func TestRoundTripperSecondRejectionIsReturned(t *testing.T) {
	ts := &tokenServer{valid: "never", frozen: true}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	client := NewRoundTripper(srv.Client().Transport, newEngine(t, ts)).Client()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 2, ts.hits.Load())
	require.EqualValues(t, 1, ts.exchanges.Load())
}

func TestRoundTripperReturnsRefreshError(t *testing.T) {
	ts := &tokenServer{valid: "A0", fail: errors.New("token endpoint down")}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	engine := newEngine(t, ts)
	client := NewRoundTripper(srv.Client().Transport, engine).Client()
	resp, err := client.Get(srv.URL)
	if resp != nil {
		resp.Body.Close()
	}

	require.Error(t, err)
	require.ErrorIs(t, err, authsession.ErrRefreshTransport)
	require.Nil(t, resp)
	require.EqualValues(t, 1, ts.hits.Load())
	require.False(t, engine.Live())
}

func TestRoundTripperDoesNotReplayOneShotBody(t *testing.T) {
	ts := &tokenServer{valid: "A0"}
	srv := httptest.NewServer(http.HandlerFunc(ts.handler))
	defer srv.Close()

	rt := NewRoundTripper(srv.Client().Transport, newEngine(t, ts))
	req, err := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("once")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 1, ts.hits.Load())
	require.EqualValues(t, 0, ts.exchanges.Load())
}
