// Package co provides coroutine-aware synchronization primitives — Event,
// Mutex, and Pool — that suspend and resume via gocoro.Coroutine.Suspend
// rather than blocking an OS thread. Named co to mirror the call-site
// spelling (co.Event, co.Mutex, co.Pool) of the source design's co::
// namespace.
package co

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/gocoro"
)

// Event is a manual-reset event modeled on coost's co::Event: once Signal is
// called it stays signaled (future Wait calls return immediately) until
// Reset is called. Waiters are tracked in a wait-set keyed by *gocoro.Coroutine,
// mirroring the registry/wait-set pattern gocoro's own timer/poller
// plumbing uses internally.
type Event struct {
	mu       sync.Mutex
	signaled bool
	waiters  map[*gocoro.Coroutine]struct{}
}

// NewEvent returns an unsignaled Event.
func NewEvent() *Event {
	return &Event{waiters: make(map[*gocoro.Coroutine]struct{})}
}

// Wait blocks the calling coroutine until Signal is called (or already has
// been, and Reset hasn't run since). Must be called from within a
// coroutine.
func (e *Event) Wait(ctx context.Context) error {
	co, ok := gocoro.CoroutineFromContext(ctx)
	if !ok {
		return gocoro.ErrNotInCoroutine
	}

	e.mu.Lock()
	if e.signaled {
		e.mu.Unlock()
		return nil
	}
	e.waiters[co] = struct{}{}
	e.mu.Unlock()

	ready, err := co.Suspend()
	if !ready {
		e.mu.Lock()
		delete(e.waiters, co)
		e.mu.Unlock()
	}
	return err
}

// WaitTimeout is Wait bounded by d, returning ready=false (and a nil error)
// if the deadline elapses first — the race is resolved the same
// CAS-guarded way as Scheduler.Sleep's timeout/readiness race.
func (e *Event) WaitTimeout(ctx context.Context, d time.Duration) (ready bool, err error) {
	co, ok := gocoro.CoroutineFromContext(ctx)
	if !ok {
		return false, gocoro.ErrNotInCoroutine
	}

	e.mu.Lock()
	if e.signaled {
		e.mu.Unlock()
		return true, nil
	}
	e.waiters[co] = struct{}{}
	e.mu.Unlock()

	ready, err = co.SuspendTimeout(d)
	if !ready {
		e.mu.Lock()
		delete(e.waiters, co)
		e.mu.Unlock()
	}
	return ready, err
}

// Signal sets the event and wakes every current waiter, handing each back
// to its own owning scheduler via AddReadyTask (so a waiter on scheduler A
// can be signaled from a coroutine running on scheduler B without
// crossing scheduler ownership boundaries directly).
func (e *Event) Signal() {
	e.mu.Lock()
	e.signaled = true
	waiters := e.waiters
	e.waiters = make(map[*gocoro.Coroutine]struct{})
	e.mu.Unlock()

	for co := range waiters {
		co.Scheduler().AddReadyTask(co)
	}
}

// Reset clears the signaled state; subsequent Wait/WaitTimeout calls block
// again until the next Signal.
func (e *Event) Reset() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// IsSignaled reports whether the event is currently signaled.
func (e *Event) IsSignaled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaled
}
