// Package taskqueue is the "simple task scheduler" demo: a FIFO of delayed
// jobs dispatched across a gocoro.Manager.
// Grounded on the sibling module microbatch (which groups jobs
// arriving within a window into batches) — generalized here from batching
// arbitrary payloads to batching coroutine dispatch, and from "flush on a
// timer" to "fire each job at its own deadline" via Scheduler.AddTimer.
package taskqueue

import (
	"context"
	"time"

	"github.com/joeycumines/gocoro"
)

// Config models optional configuration, for New. A nil Config uses the
// zero scheduler (the same convention NewBatcher uses for a nil
// BatcherConfig).
type Config struct {
	// TimerScheduler selects which of the Manager's schedulers owns the
	// timer wheel driving job deadlines. Defaults to scheduler 0.
	TimerScheduler int
}

// Job is a unit of work dispatched onto the Manager when its deadline
// arrives.
type Job func(ctx context.Context)

// Queue schedules Jobs to run after a delay (or immediately), FIFO among
// jobs with equal deadlines (the underlying timer wheel's tie-break, see
// timer.go), each dispatched as its own coroutine via Manager.Go.
//
// Instances must be initialized using New.
type Queue struct {
	m     *gocoro.Manager
	timer *gocoro.Scheduler
}

// New initializes a Queue bound to m. config may be nil.
func New(m *gocoro.Manager, config *Config) *Queue {
	idx := 0
	if config != nil {
		idx = config.TimerScheduler
	}
	return &Queue{m: m, timer: m.Scheduler(idx)}
}

// Schedule arms job to run after delay, dispatched round-robin across the
// Manager's schedulers (not necessarily the timer's own scheduler — the
// timer wheel only decides *when*, Manager.Go decides *where*). Returns a
// TimerID that Cancel can use to pull it back before it fires.
func (q *Queue) Schedule(ctx context.Context, delay time.Duration, job Job) gocoro.TimerID {
	return q.timer.AddTimer(delay, func() {
		q.m.Go(ctx, job)
	})
}

// ScheduleNow is Schedule with a zero delay — the job still goes through
// the timer wheel (so it is ordered FIFO against any other job already due
// this tick) rather than being dispatched inline.
func (q *Queue) ScheduleNow(ctx context.Context, job Job) gocoro.TimerID {
	return q.Schedule(ctx, 0, job)
}

// Cancel pulls a scheduled job out of the timer wheel before it fires.
// Returns gocoro.ErrTimerNotFound if it already fired or was already
// cancelled.
func (q *Queue) Cancel(id gocoro.TimerID) error {
	return q.timer.DelTimer(id)
}
