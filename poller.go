package gocoro

// IOCallback is invoked by a Poller when one of the events it was
// registered for becomes ready. The argument reports which of
// EventRead/EventWrite/EventError/EventHangup actually fired.
type IOCallback func(IOEvents)

// poller is the uniform readiness-notification surface over
// epoll/kqueue/IOCP described by the source design's component B: register
// a callback for a direction on an fd, wait for readiness, and an
// idempotent cross-thread wake-up. Implementations live in the
// platform-specific poller_*.go files; FastPoller is the concrete type
// selected at compile time via build tags.
type poller interface {
	Init() error
	Close() error
	// RegisterFD arms cb for every direction set in events, independently
	// per direction: a read waiter and a write waiter may coexist on the
	// same fd. Registering a direction that already has a waiter returns
	// ErrFDAlreadyRegistered.
	RegisterFD(fd int, events IOEvents, cb IOCallback) error
	// UnregisterFD disarms whichever directions are set in events, leaving
	// any other direction's waiter untouched.
	UnregisterFD(fd int, events IOEvents) error
	ModifyFD(fd int, events IOEvents) error
	PollIO(timeoutMs int) (int, error)
	// Signal performs an idempotent cross-thread wake-up of a blocked
	// PollIO call. Implementations own their own self-pipe/eventfd/IOCP
	// completion internally.
	Signal() error
}

var _ poller = (*FastPoller)(nil)
