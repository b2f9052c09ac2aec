package gocoro

import (
	"context"
	"time"
)

// Sleep suspends the calling coroutine for d:
// scheduler-aware when called from within a coroutine started by
// Manager.Go/Scheduler.Go, an ordinary blocking time.Sleep otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	co, ok := CoroutineFromContext(ctx)
	if !ok {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return co.sched.Sleep(co, d)
}

// Yield suspends the calling coroutine until it is explicitly resumed via
// Scheduler.AddReadyTask or Coroutine.Resume.
// Outside a coroutine it is a no-op, since there is no scheduler to
// cooperate with.
func Yield(ctx context.Context) error {
	co, ok := CoroutineFromContext(ctx)
	if !ok {
		return nil
	}
	_, err := co.Suspend()
	if err == ErrTimeout {
		// Yield never arms a timer, so a timeout outcome can't occur; kept
		// only so Suspend's contract doesn't need a special case here.
		return nil
	}
	return err
}
