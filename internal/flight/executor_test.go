package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecutorSingleFlight(t *testing.T) {
	e := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan Outcome[int], n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			out, err := e.Do(context.Background(), func(context.Context, Cycle) int {
				calls.Add(1)
				<-release
				return 42
			})
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			results <- out
		}()
	}

	// every caller is inside Do while the cycle is blocked, so all of them join it
	for !e.Live() || e.Waiting() < n {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
	close(results)

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one cycle run, got %d", got)
	}
	starters := 0
	var id string
	for out := range results {
		if out.Value != 42 {
			t.Fatalf("expected shared value, got %d", out.Value)
		}
		if id == "" {
			id = out.CycleID
		}
		if out.CycleID != id {
			t.Fatalf("callers observed different cycles: %s vs %s", out.CycleID, id)
		}
		if !out.Joined {
			starters++
		}
	}
	if starters != 1 {
		t.Fatalf("expected one starter, got %d", starters)
	}
}

func TestExecutorStartsCleanCycleAfterDelivery(t *testing.T) {
	e := New[int]()
	n := 0
	for i := 0; i < 3; i++ {
		out, err := e.Do(context.Background(), func(context.Context, Cycle) int {
			n++
			return n
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		if out.Value != i+1 || out.Joined {
			t.Fatalf("cycle %d: got %+v", i, out)
		}
	}
	if e.Started() != 3 {
		t.Fatalf("expected 3 cycles, got %d", e.Started())
	}
	if e.Live() {
		t.Fatal("no cycle should be live after delivery")
	}
}

func TestExecutorCallerCancelDoesNotAbortCycle(t *testing.T) {
	e := New[string]()
	release := make(chan struct{})
	finished := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, err := e.Do(ctx, func(cctx context.Context, _ Cycle) string {
			<-release
			finished <- cctx.Err()
			return "done"
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled for the caller, got %v", err)
		}
	}()

	for !e.Live() {
		time.Sleep(time.Millisecond)
	}
	cancel()

	// A second caller joins the same cycle and still gets the result.
	joined := make(chan Outcome[string], 1)
	go func() {
		out, _ := e.Do(context.Background(), func(context.Context, Cycle) string { return "other" })
		joined <- out
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-finished; err != nil {
		t.Fatalf("cycle context must not be cancelled, got %v", err)
	}
	out := <-joined
	if out.Value != "done" || !out.Joined {
		t.Fatalf("expected joined caller to see the original cycle, got %+v", out)
	}
}
