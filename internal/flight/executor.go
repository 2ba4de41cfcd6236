package flight

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const cycleKey = "refresh"

// Cycle describes one run of the cycle function.
type Cycle struct {
	ID string
}

// Outcome is what a caller observed.
type Outcome[T any] struct {
	Value T
	// Joined is true when the caller did not start the cycle.
	Joined  bool
	CycleID string
}

// Executor fans concurrent callers into one in-flight cycle.
type Executor[T any] struct {
	group   singleflight.Group
	live    atomic.Int32
	waiting atomic.Int32
	started atomic.Uint64
}

// New creates an Executor.
func New[T any]() *Executor[T] {
	return &Executor[T]{}
}

type cycleResult[T any] struct {
	value T
	id    string
}

// Do joins the live cycle or starts one running fn. fn runs on its own goroutine with a
// context that is never cancelled by callers; a caller whose ctx ends stops waiting and
// gets ctx.Err(), while the cycle runs to completion for everyone else.
func (e *Executor[T]) Do(ctx context.Context, fn func(ctx context.Context, c Cycle) T) (Outcome[T], error) {
	detached := context.WithoutCancel(ctx)
	started := false

	e.waiting.Add(1)
	defer e.waiting.Add(-1)

	ch := e.group.DoChan(cycleKey, func() (any, error) {
		started = true
		e.live.Add(1)
		defer e.live.Add(-1)
		e.started.Add(1)

		c := Cycle{ID: uuid.NewString()}
		return cycleResult[T]{value: fn(detached, c), id: c.ID}, nil
	})

	select {
	case res := <-ch:
		out := res.Val.(cycleResult[T])
		return Outcome[T]{Value: out.value, Joined: !started, CycleID: out.id}, nil
	case <-ctx.Done():
		var zero Outcome[T]
		return zero, ctx.Err()
	}
}

// Live reports whether a cycle is currently running.
func (e *Executor[T]) Live() bool {
	return e.live.Load() > 0
}

// Waiting returns how many callers are inside Do.
func (e *Executor[T]) Waiting() int {
	return int(e.waiting.Load())
}

// Started returns how many cycles have been started.
func (e *Executor[T]) Started() uint64 {
	return e.started.Load()
}
