package gocoro

import "sync/atomic"

// SchedulerState represents the current state of a Scheduler's run loop.
//
// State machine:
//
//	StateAwake (0)       → StateRunning (3)        [start()]
//	StateRunning (3)     → StateSleeping (2)        [wait() via CAS]
//	StateRunning (3)     → StateTerminating (4)     [Stop()]
//	StateSleeping (2)    → StateRunning (3)         [wait() wake via CAS]
//	StateSleeping (2)    → StateTerminating (4)     [Stop()]
//	StateTerminating (4) → StateTerminated (1)      [shutdown complete]
//	StateTerminated (1)  → (terminal)
//
// Values are intentionally ordered to keep StateTerminated and StateSleeping
// distinguishable at a glance in logs (1 and 2), matching eventloop's own
// layout.
type SchedulerState uint64

const (
	StateAwake       SchedulerState = 0
	StateTerminated  SchedulerState = 1
	StateSleeping    SchedulerState = 2
	StateRunning     SchedulerState = 3
	StateTerminating SchedulerState = 4
)

func (s SchedulerState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine guarded purely by CAS, with no
// transition validation in the hot path (callers are expected to know the
// valid transitions; see SchedulerState's doc comment).
type fastState struct {
	v atomic.Uint64
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *fastState) Load() SchedulerState { return SchedulerState(s.v.Load()) }

func (s *fastState) Store(state SchedulerState) { s.v.Store(uint64(state)) }

func (s *fastState) TryTransition(from, to SchedulerState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) IsTerminal() bool { return s.Load() == StateTerminated }

func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case StateAwake, StateRunning, StateSleeping, StateTerminating:
		return true
	default:
		return false
	}
}
