package gocoro

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Manager owns a fixed set of Schedulers and round-robins new coroutines
// across them. There is no work stealing: a coroutine
// belongs to exactly one Scheduler for its entire lifetime;
// Scheduler.AddReadyTask does not change that owner.
type Manager struct {
	schedulers []*Scheduler
	next       atomic.Uint32
	mask       uint32 // schedulers-count - 1, used when count is a power of two
	powerOf2   bool

	stopOnce sync.Once
}

// NewManager builds a Manager with the given options and starts every
// Scheduler's run loop. ctx is passed to each run loop, which does not
// read it: cancelling it does not stop the loops — use Stop for that.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg := resolveManagerOptions(opts)

	n := cfg.numSchedulers
	if n <= 0 {
		n = runtime.NumCPU()
	}

	schedOpts := resolveSchedulerOptions(cfg.schedOpts)

	m := &Manager{schedulers: make([]*Scheduler, n)}
	m.powerOf2 = n&(n-1) == 0
	if m.powerOf2 {
		m.mask = uint32(n - 1)
	}

	for i := 0; i < n; i++ {
		s, err := newScheduler(uint64(i), schedOpts)
		if err != nil {
			for _, started := range m.schedulers[:i] {
				_ = started.poller.Close()
			}
			return nil, err
		}
		m.schedulers[i] = s
	}
	for _, s := range m.schedulers {
		s.start(ctx)
	}
	return m, nil
}

// SchedulerCount returns co_sched_num as resolved (never 0).
func (m *Manager) SchedulerCount() int { return len(m.schedulers) }

// Scheduler returns the i-th scheduler, for callers that need to pin work
// to a specific scheduler (e.g. co.Pool, which is scheduler-local by
// design.)
func (m *Manager) Scheduler(i int) *Scheduler { return m.schedulers[i%len(m.schedulers)] }

func (m *Manager) pick() *Scheduler {
	i := m.next.Add(1) - 1
	if m.powerOf2 {
		return m.schedulers[i&m.mask]
	}
	return m.schedulers[i%uint32(len(m.schedulers))]
}

// Go hands fn to the next scheduler in round-robin order (bitmask
// shortcut when the scheduler count is a power of two, `%N` otherwise).
func (m *Manager) Go(ctx context.Context, fn func(ctx context.Context)) *Coroutine {
	return m.pick().Go(ctx, fn)
}

// Stop stops every scheduler and waits for all of them to drain, or until
// ctx is done. It is safe to call more than once.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	m.stopOnce.Do(func() {
		var wg sync.WaitGroup
		errs := make([]error, len(m.schedulers))
		wg.Add(len(m.schedulers))
		for i, s := range m.schedulers {
			i, s := i, s
			go func() {
				defer wg.Done()
				errs[i] = s.Stop(ctx)
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				firstErr = err
				break
			}
		}
	})
	return firstErr
}
