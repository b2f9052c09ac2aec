package co

import (
	"context"
	"sync"

	"github.com/joeycumines/gocoro"
)

// Mutex is a FIFO coroutine-aware mutex modeled on coost's co::Mutex:
// Lock suspends the calling coroutine if contended, and Unlock wakes the
// longest-waiting coroutine rather than racing every waiter awake.
// Ordinary sync.Mutex only guards the waiter deque itself; it is never
// held across a suspension point.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []*gocoro.Coroutine
}

// Lock acquires the mutex, suspending the calling coroutine if it is
// already held. Must be called from within a coroutine.
func (m *Mutex) Lock(ctx context.Context) error {
	co, ok := gocoro.CoroutineFromContext(ctx)
	if !ok {
		return gocoro.ErrNotInCoroutine
	}

	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	m.waiters = append(m.waiters, co)
	m.mu.Unlock()

	ready, err := co.Suspend()
	if err != nil {
		return err
	}
	// A Resume here always means Unlock handed ownership to us directly;
	// there is no timeout path, so ready is always true.
	_ = ready
	return nil
}

// TryLock acquires the mutex without blocking, reporting whether it
// succeeded. Unlike Lock, it may be called outside a coroutine.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases the mutex, handing ownership directly to the
// longest-waiting coroutine if any are queued (so the lock never passes
// through an "unlocked" state a TryLock caller could steal out from under
// a waiter — matching the source design's fairness guarantee).
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if len(m.waiters) == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.mu.Unlock()

	next.Scheduler().AddReadyTask(next)
}
