//go:build linux || darwin

package netco

import (
	"context"
	"time"

	"github.com/joeycumines/gocoro"
)

// IoEvent is the single suspension primitive every blocking I/O call in
// this package funnels through: it binds an (fd, direction) pair to the
// calling coroutine's scheduler Poller, optionally races a deadline, and
// reports which events actually fired. This is the Go-native stand-in for
// the source design's hooked-syscall suspend point.
type IoEvent struct {
	sched  *gocoro.Scheduler
	co     *gocoro.Coroutine
	fd     int
	events gocoro.IOEvents
	fired  gocoro.IOEvents
}

// NewIoEvent binds fd for the given direction(s) to the calling coroutine.
// Returns gocoro.ErrNotInCoroutine outside a coroutine.
func NewIoEvent(ctx context.Context, fd int, events gocoro.IOEvents) (*IoEvent, error) {
	co, ok := gocoro.CoroutineFromContext(ctx)
	if !ok {
		return nil, gocoro.ErrNotInCoroutine
	}
	return &IoEvent{sched: co.Scheduler(), co: co, fd: fd, events: events}, nil
}

// Wait registers with the Poller and suspends the calling coroutine until
// fd becomes ready or deadline elapses (deadline <= 0 means wait
// indefinitely). Returns the events that actually fired, or
// gocoro.ErrTimeout if the deadline won the race.
func (e *IoEvent) Wait(deadline time.Duration) (gocoro.IOEvents, error) {
	if err := e.sched.RegisterFD(e.fd, e.events, func(ev gocoro.IOEvents) {
		e.fired = ev
		e.co.Resume()
	}); err != nil {
		return 0, err
	}
	defer e.sched.UnregisterFD(e.fd, e.events)

	var ready bool
	var err error
	if deadline > 0 {
		ready, err = e.co.SuspendTimeout(deadline)
	} else {
		ready, err = e.co.Suspend()
	}
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, gocoro.ErrTimeout
	}
	return e.fired, nil
}
