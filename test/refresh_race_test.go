//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/persist"
)

func TestConcurrentRejectionsRotateOnce(t *testing.T) {
	api, srv := newTokenAPI(t, time.Hour)
	engine := newEngine(t, srv, persist.NewMemory(), nil)
	if err := engine.StartSession(context.Background(), api.login()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	api.revoke()

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			resp, err := get(t, engine)
			if err == nil && resp.StatusCode != http.StatusOK {
				err = &authsession.AuthFailure{StatusCode: resp.StatusCode}
			}
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
	}
	if got := api.exchanges.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh exchange, got %d", got)
	}
	if api.reuseDetected() {
		t.Fatal("server detected refresh token reuse")
	}
	if !engine.Live() {
		t.Fatal("session must survive")
	}
}

func TestReuseDetectionTerminatesSession(t *testing.T) {
	api, srv := newTokenAPI(t, time.Hour)
	engine := newEngine(t, srv, persist.NewMemory(), nil)

	pair := api.login()
	if err := engine.StartSession(context.Background(), pair); err != nil {
		t.Fatal(err)
	}
	// another client spent the refresh token first
	api.login()

	var notified int
	engine.Subscribe(func(authsession.SessionEvent) { notified++ })

	if _, err := engine.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh to fail")
	}
	if notified != 1 || engine.Live() {
		t.Fatalf("expected one termination, got %d", notified)
	}
}
