package gocoro

import (
	"context"
	"sync/atomic"
	"time"
)

// waitState tracks coroutine lifecycle: init | wait |
// ready | timeout. A suspended coroutine CASes out of waitStateWaiting
// exactly once, either to waitStateReady (I/O or explicit resume won the
// race) or waitStateTimedOut (the timer won) — this CAS is what makes
// a timeout and a readiness signal racing for the same coroutine never both win.
type waitState int32

const (
	waitStateInit waitState = iota
	waitStateWaiting
	waitStateReady
	waitStateTimedOut
	waitStateShutdown
)

// resumeSignal is sent on a Coroutine's resumeCh to wake it from a
// suspension point. outcome reports which of waitStateReady /
// waitStateTimedOut / waitStateShutdown the scheduler observed when it won
// the CAS against waitStateWaiting.
type resumeSignal struct {
	outcome waitState
}

// Coroutine is gocoro's unit of scheduled execution: a real goroutine plus
// the bookkeeping a Scheduler needs to suspend and resume it. It is owned
// by the Scheduler that created it for its whole life: another
// Scheduler's AddReadyTask can resume it, but does not change its owner.
//
// Unlike the source design's stackful coroutine, there is no saved-stack
// buffer and no machine context: the Go runtime already gives every
// goroutine its own growable stack, so "suspend" is a channel receive and
// "resume" is a channel send rather than a stack swap.
type Coroutine struct {
	id         uint64
	generation uint64
	sched      *Scheduler

	resumeCh chan resumeSignal
	state    atomic.Int32 // waitState
	done     atomic.Bool

	// timerID is set while the coroutine is suspended with a deadline
	// (Sleep, or an IoEvent/Event wait with a timeout), so a racing
	// resume can cancel the still-pending timer.
	timerID   TimerID
	hasTimer  atomic.Bool
}

// ID returns the coroutine's identifier, unique within its scheduler only:
// every scheduler numbers its coroutines from 1.
func (c *Coroutine) ID() uint64 { return c.id }

// Scheduler returns the Scheduler that owns this coroutine.
func (c *Coroutine) Scheduler() *Scheduler { return c.sched }

func (c *Coroutine) terminated() bool { return c.done.Load() }

func (c *Coroutine) markShutdown() {
	c.state.Store(int32(waitStateShutdown))
	select {
	case c.resumeCh <- resumeSignal{outcome: waitStateShutdown}:
	default:
	}
}

// prepareWait marks the coroutine as waiting. Callers must call this
// before arranging for any wake(), so the CAS in wake cannot race ahead of
// it (the classic "register, then check" ordering).
func (c *Coroutine) prepareWait() { c.state.Store(int32(waitStateWaiting)) }

// await blocks the calling goroutine (the coroutine's own) until the
// scheduler resumes it, and reports the outcome. Every suspension point in
// gocoro funnels through prepareWait + await.
func (c *Coroutine) await() waitState {
	sig := <-c.resumeCh
	return sig.outcome
}

// wake delivers outcome to the coroutine, CAS-guarded against a racing
// timeout/readiness delivery (exactly one of
// timeout or readiness is ever observed). Returns false if the coroutine
// had already been woken (the race was lost).
func (c *Coroutine) wake(outcome waitState) bool {
	if !c.state.CompareAndSwap(int32(waitStateWaiting), int32(outcome)) {
		return false
	}
	c.resumeCh <- resumeSignal{outcome: outcome}
	return true
}

// Suspend is the exported suspension primitive used by gocoro's sync and
// netco subpackages: it marks the coroutine waiting and blocks until the
// scheduler wakes it, returning true if it was woken for readiness/an
// explicit resume and false on timeout or scheduler shutdown.
func (c *Coroutine) Suspend() (ready bool, err error) {
	c.prepareWait()
	switch c.await() {
	case waitStateReady:
		return true, nil
	case waitStateTimedOut:
		return false, ErrTimeout
	default:
		return false, ErrSchedulerStopped
	}
}

// Resume wakes a coroutine suspended via Suspend, delivering readiness.
// Returns false if the coroutine was already woken (lost the race, e.g.
// against a timeout).
func (c *Coroutine) Resume() bool { return c.wake(waitStateReady) }

// SuspendTimeout is Suspend with a deadline: it arms a timer for d before
// blocking, and disarms it if readiness wins the race. Used by the sync
// subpackage's co.Event.WaitTimeout and directly by Scheduler.Sleep's
// cousins. Returns ready=true only on an explicit Resume; a timeout
// reports ready=false with a nil error (not ErrTimeout), matching
// a manual-reset event's bool-returning wait contract.
func (c *Coroutine) SuspendTimeout(d time.Duration) (ready bool, err error) {
	c.prepareWait()
	c.hasTimer.Store(true)
	c.timerID = c.sched.AddTimer(d, func() {
		c.hasTimer.Store(false)
		c.wake(waitStateTimedOut)
	})
	switch c.await() {
	case waitStateReady:
		if c.hasTimer.CompareAndSwap(true, false) {
			_ = c.sched.DelTimer(c.timerID)
		}
		return true, nil
	case waitStateTimedOut:
		return false, nil
	default:
		return false, ErrSchedulerStopped
	}
}

type coroutineCtxKey struct{}

// CoroutineFromContext returns the Coroutine running on the calling
// goroutine, if ctx descends from one created by Go/Manager.Go. This is
// gocoro's explicit replacement for the source design's gSched
// thread-local.
func CoroutineFromContext(ctx context.Context) (*Coroutine, bool) {
	co, ok := ctx.Value(coroutineCtxKey{}).(*Coroutine)
	return co, ok
}

func withCoroutine(ctx context.Context, co *Coroutine) context.Context {
	return context.WithValue(ctx, coroutineCtxKey{}, co)
}

// SchedID returns the id of the scheduler running the calling coroutine,
// or (0, false) outside a coroutine.
func SchedID(ctx context.Context) (uint64, bool) {
	co, ok := CoroutineFromContext(ctx)
	if !ok {
		return 0, false
	}
	return co.sched.id, true
}

// CoroutineID returns the calling coroutine's id, or (0, false) outside a
// coroutine.
func CoroutineID(ctx context.Context) (uint64, bool) {
	co, ok := CoroutineFromContext(ctx)
	if !ok {
		return 0, false
	}
	return co.id, true
}
