package authsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/internal/renewal"
	"github.com/MrEthical07/authsession/persist"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped atomic.Bool
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

// fire runs the timer the way the runtime would after it expires.
func (t *fakeTimer) fire() {
	t.stopped.Store(true)
	t.fn()
}

type timerLog struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (l *timerLog) afterFunc(d time.Duration, f func()) renewal.Timer {
	t := &fakeTimer{delay: d, fn: f}
	l.mu.Lock()
	l.timers = append(l.timers, t)
	l.mu.Unlock()
	return t
}

// armed returns the single unstopped timer, or nil.
func (l *timerLog) armed(t *testing.T) *fakeTimer {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	var out *fakeTimer
	for _, ft := range l.timers {
		if ft.stopped.Load() {
			continue
		}
		if out != nil {
			t.Fatalf("more than one armed timer")
		}
		out = ft
	}
	return out
}

// exchanger mints A<n>/R<n> on the n-th call, starting from 2.
type exchanger struct {
	mu     sync.Mutex
	calls  int
	err    error
	gate   chan struct{}
	tokens []string
}

func (x *exchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string, _ http.Header) (TokenPair, error) {
	x.mu.Lock()
	x.calls++
	n := x.calls
	x.tokens = append(x.tokens, refreshToken)
	gate, err := x.gate, x.err
	x.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return TokenPair{}, ctx.Err()
		}
	}
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  fmt.Sprintf("A%d", n+1),
		RefreshToken: fmt.Sprintf("R%d", n+1),
	}, nil
}

func (x *exchanger) Calls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.calls
}

// api accepts requests whose bearer token satisfies accept.
type api struct {
	mu     sync.Mutex
	accept func(token string) bool
	seen   []string
}

func (a *api) Issue(_ context.Context, req *Request) (*Response, error) {
	token := strings.TrimPrefix(req.Header.Get("Authorization"), bearerPrefix)
	a.mu.Lock()
	a.seen = append(a.seen, token)
	accept := a.accept
	a.mu.Unlock()

	if accept == nil || !accept(token) {
		return nil, &AuthFailure{StatusCode: http.StatusUnauthorized, Err: errors.New("unauthorized")}
	}
	return &Response{StatusCode: http.StatusOK}, nil
}

func (a *api) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

type testEnv struct {
	engine  *Engine
	clock   *fakeClock
	timers  *timerLog
	ex      *exchanger
	api     *api
	mem     *persist.Memory
	events  atomic.Int32
	reasons chan error
}

type envOption func(*Builder, *Config)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:   &fakeClock{now: t0},
		timers:  &timerLog{},
		ex:      &exchanger{},
		api:     &api{},
		mem:     persist.NewMemory(),
		reasons: make(chan error, 16),
	}
	env.engine = buildEngine(t, env, opts...)
	return env
}

func buildEngine(t *testing.T, env *testEnv, opts ...envOption) *Engine {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := DefaultConfig()
	cfg.Renewal.MaxTimerSlice = 0
	cfg.Metrics.Enabled = true

	b := New()
	for _, opt := range opts {
		opt(b, &cfg)
	}
	b.WithConfig(cfg).
		WithExchanger(env.ex).
		WithIssuer(env.api).
		WithPersistence(env.mem).
		WithLogger(logger).
		WithClock(env.clock.Now)
	b.afterFunc = env.timers.afterFunc

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.Subscribe(func(ev SessionEvent) {
		env.events.Add(1)
		env.reasons <- ev.Reason
	})
	t.Cleanup(engine.Close)
	return engine
}

func (env *testEnv) login(t *testing.T) {
	t.Helper()
	if err := env.engine.StartSession(context.Background(), TokenPair{AccessToken: "A1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
}

// waitForCallers blocks until n callers are inside the refresh executor.
func (env *testEnv) waitForCallers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for env.engine.flight.Waiting() < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d callers joined the refresh cycle", env.engine.flight.Waiting(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
