package gocoro

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is one goroutine-driven run loop: it owns
// one Poller, one timer wheel, one coroutine registry, and two ingress
// queues. Generalized from eventloop's Loop (which resumed arbitrary
// task callbacks) to resume Coroutines instead.
//
// Every Scheduler method that touches the timer wheel or poller tables is
// only ever executed on the Scheduler's own loop goroutine: callers on
// other goroutines (coroutines included — they run on their own goroutine,
// not the loop's) submit a closure via the internal or external ingress
// and block on a reply channel, preserving a "no locking
// required to access scheduler-local state" invariant for the loop itself.
type Scheduler struct {
	id       uint64
	state    *fastState
	poller   poller
	timers   *timerWheel
	registry *registry
	logger   Logger
	metrics  *SchedulerMetrics

	externalMu sync.Mutex
	external   *chunkedIngress

	internalMu sync.Mutex
	internal   *chunkedIngress

	// wakeCh is the fast-path wakeup channel used when no I/O fds are
	// registered, avoiding an epoll/kqueue syscall entirely (ported
	// concept from eventloop's fastWakeupCh).
	wakeCh        chan struct{}
	userIOFDCount atomic.Int32

	coroCount atomic.Int64
	doneCh    chan struct{}
	stopOnce  sync.Once
}

func newScheduler(id uint64, opts *schedulerOptions) (*Scheduler, error) {
	p := &FastPoller{}
	if err := p.Init(); err != nil {
		return nil, fatalf("scheduler.newScheduler", err)
	}

	logger := opts.logger
	if logger == nil {
		logger = getGlobalLogger()
	}

	s := &Scheduler{
		id:       id,
		state:    newFastState(),
		poller:   p,
		timers:   newTimerWheel(),
		registry: newRegistry(),
		logger:   logger,
		external: newChunkedIngress(),
		internal: newChunkedIngress(),
		wakeCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
	if opts.metricsEnabled {
		s.metrics = newSchedulerMetrics()
	}
	return s, nil
}

// ID returns the scheduler's index within its Manager.
func (s *Scheduler) ID() uint64 { return s.id }

// Metrics returns the scheduler's metrics, or nil if WithMetrics was not
// enabled.
func (s *Scheduler) Metrics() *SchedulerMetrics { return s.metrics }

func (s *Scheduler) log(level LogLevel, category, msg string, err error) {
	if !s.logger.IsEnabled(level) {
		return
	}
	s.logger.Log(LogEntry{Level: level, Category: category, SchedID: s.id, Message: msg, Err: err, Timestamp: time.Now()})
}

// start launches the scheduler's run loop on a new goroutine.
func (s *Scheduler) start(ctx context.Context) {
	s.state.Store(StateRunning)
	go s.loop(ctx)
}

// wakeLoop interrupts whichever wait the loop goroutine is currently
// blocked in — the fast-path channel or the Poller's self-pipe — so a
// freshly-queued task or timer change is not left waiting for an unrelated
// deadline.
func (s *Scheduler) wakeLoop() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
	_ = s.poller.Signal()
}

func (s *Scheduler) submitExternal(fn func()) {
	queuedAt := time.Now()
	s.externalMu.Lock()
	s.external.Push(func() {
		if s.metrics != nil {
			s.metrics.RecordResume(time.Since(queuedAt))
		}
		fn()
	})
	depth := s.external.Length()
	s.externalMu.Unlock()
	if s.metrics != nil {
		s.metrics.Queue.Update(depth)
	}
	s.wakeLoop()
}

func (s *Scheduler) submitInternal(fn func()) {
	s.internalMu.Lock()
	s.internal.Push(fn)
	s.internalMu.Unlock()
	s.wakeLoop()
}

// Go starts fn as a new coroutine owned by this scheduler. ctx is the
// parent context; the coroutine's own context carries its Coroutine
// (retrievable via CoroutineFromContext).
func (s *Scheduler) Go(ctx context.Context, fn func(ctx context.Context)) *Coroutine {
	co := &Coroutine{sched: s, resumeCh: make(chan resumeSignal, 1)}
	co.id, co.generation = s.registry.register(co)
	s.coroCount.Add(1)
	s.submitExternal(func() { s.launch(ctx, co, fn) })
	return co
}

func (s *Scheduler) launch(ctx context.Context, co *Coroutine, fn func(context.Context)) {
	coCtx := withCoroutine(ctx, co)
	go func() {
		defer func() {
			co.done.Store(true)
			s.coroCount.Add(-1)
		}()
		fn(coCtx)
	}()
}

// AddReadyTask queues the resumption of an already-suspended coroutine on
// this scheduler's loop. It does not change the coroutine's owner:
// co.Scheduler() and gocoro.SchedID still report the scheduler that
// created it.
func (s *Scheduler) AddReadyTask(co *Coroutine) {
	s.submitExternal(func() { co.Resume() })
}

// Sleep suspends co for d. Returns
// ErrSchedulerStopped if the scheduler stops while waiting. co must be
// owned by s — unlike AddReadyTask, this is not a cross-scheduler handoff.
func (s *Scheduler) Sleep(co *Coroutine, d time.Duration) error {
	checkf(co.sched == s, "Sleep called with a coroutine owned by a different scheduler")
	co.prepareWait()
	s.submitInternal(func() {
		co.hasTimer.Store(true)
		co.timerID = s.timers.Add(time.Now().Add(d), func() {
			co.hasTimer.Store(false)
			co.wake(waitStateTimedOut)
		})
	})
	switch co.await() {
	case waitStateTimedOut:
		return nil
	default:
		return ErrSchedulerStopped
	}
}

// AddTimer arms a one-shot timer firing fn after d, mirroring
// add_timer. Safe to call from any goroutine except the scheduler's own
// loop goroutine (which would deadlock waiting on its own queue).
func (s *Scheduler) AddTimer(d time.Duration, fn func()) TimerID {
	reply := make(chan TimerID, 1)
	s.submitInternal(func() { reply <- s.timers.Add(time.Now().Add(d), fn) })
	return <-reply
}

// DelTimer cancels a pending timer (coost's del_timer). Returns
// ErrTimerNotFound if it already fired or was already deleted.
func (s *Scheduler) DelTimer(id TimerID) error {
	reply := make(chan error, 1)
	s.submitInternal(func() { reply <- s.timers.Del(id) })
	return <-reply
}

// RegisterFD registers fd with the scheduler's Poller, mirroring
// add_event, and switches the loop off the channel fast-path.
func (s *Scheduler) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	reply := make(chan error, 1)
	s.submitInternal(func() {
		err := s.poller.RegisterFD(fd, events, cb)
		if err == nil {
			s.userIOFDCount.Add(1)
		}
		reply <- err
	})
	return <-reply
}

// UnregisterFD disarms the given direction(s) of fd on the scheduler's
// Poller, mirroring del_event(fd). A fd with the other direction still
// armed stays registered for it.
func (s *Scheduler) UnregisterFD(fd int, events IOEvents) error {
	reply := make(chan error, 1)
	s.submitInternal(func() {
		err := s.poller.UnregisterFD(fd, events)
		if s.userIOFDCount.Load() > 0 {
			s.userIOFDCount.Add(-1)
		}
		reply <- err
	})
	return <-reply
}

// ModifyFD changes fd's armed events.
func (s *Scheduler) ModifyFD(fd int, events IOEvents) error {
	reply := make(chan error, 1)
	s.submitInternal(func() { reply <- s.poller.ModifyFD(fd, events) })
	return <-reply
}

// Stop requests the scheduler to drain and terminate. It blocks until the
// run loop exits or ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		for {
			cur := s.state.Load()
			if cur == StateTerminating || cur == StateTerminated {
				break
			}
			if s.state.TryTransition(cur, StateTerminating) {
				break
			}
		}
		s.wakeLoop()
	})
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed once the scheduler's run loop has fully
// exited.
func (s *Scheduler) Done() <-chan struct{} { return s.doneCh }

func (s *Scheduler) loop(parentCtx context.Context) {
	defer close(s.doneCh)

	timeoutMs := -1
	for {
		if s.state.Load() == StateTerminating &&
			s.coroCount.Load() == 0 &&
			s.queuesEmpty() {
			s.state.Store(StateTerminated)
			s.shutdown()
			return
		}

		s.wait(timeoutMs)

		s.drain(&s.externalMu, s.external)
		s.drain(&s.internalMu, s.internal)

		timeoutMs = s.timers.CheckTimeout(time.Now())
	}
}

func (s *Scheduler) queuesEmpty() bool {
	s.externalMu.Lock()
	extEmpty := s.external.Length() == 0
	s.externalMu.Unlock()
	s.internalMu.Lock()
	intEmpty := s.internal.Length() == 0
	s.internalMu.Unlock()
	return extEmpty && intEmpty && s.timers.Len() == 0
}

func (s *Scheduler) wait(timeoutMs int) {
	if s.userIOFDCount.Load() == 0 {
		s.waitFastPath(timeoutMs)
		return
	}
	s.state.TryTransition(StateRunning, StateSleeping)
	_, err := s.poller.PollIO(timeoutMs)
	s.state.TryTransition(StateSleeping, StateRunning)
	if err != nil {
		s.log(LevelError, "poller", "PollIO failed", err)
	}
}

func (s *Scheduler) waitFastPath(timeoutMs int) {
	s.state.TryTransition(StateRunning, StateSleeping)
	defer s.state.TryTransition(StateSleeping, StateRunning)

	switch {
	case timeoutMs < 0:
		<-s.wakeCh
	case timeoutMs == 0:
		select {
		case <-s.wakeCh:
		default:
		}
	default:
		t := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer t.Stop()
		select {
		case <-s.wakeCh:
		case <-t.C:
		}
	}
}

func (s *Scheduler) drain(mu *sync.Mutex, q *chunkedIngress) {
	for {
		mu.Lock()
		fn, ok := q.Pop()
		mu.Unlock()
		if !ok {
			return
		}
		fn()
	}
}

func (s *Scheduler) shutdown() {
	s.registry.RejectAll()
	if err := s.poller.Close(); err != nil {
		s.log(LevelWarn, "scheduler", "poller close failed", err)
	}
}
