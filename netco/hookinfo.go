//go:build linux || darwin

package netco

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// HookInfo caches the per-fd state the hook layer needs on every I/O call:
// whether O_NONBLOCK has already been set (promotion happens once, lazily,
// on first use, including for sockets from NewTCPSocket/Listen, which are
// created blocking), and the SO_SNDTIMEO/SO_RCVTIMEO deadlines in effect,
// read from the kernel once and cached rather than re-queried on every
// call.
type HookInfo struct {
	mu          sync.Mutex
	fd          int
	nonblockSet bool
	timeoutsRead bool
	recvTimeout time.Duration
	sendTimeout time.Duration
	hookable    bool
}

func newHookInfo(fd int) *HookInfo {
	return &HookInfo{fd: fd, hookable: true}
}

// MarkUnhookable flips this fd to the non-coroutine-aware fallback path:
// subsequent Recv/RecvN/Send/Accept/Connect/RecvFrom/SendTo calls perform
// plain blocking syscalls instead of promoting the fd to O_NONBLOCK and
// suspending on EAGAIN. Intended for fds adopted from outside netco (e.g. a
// systemd-activated listener fd) whose blocking-mode contract callers don't
// want netco to alter.
func (h *HookInfo) MarkUnhookable() {
	h.mu.Lock()
	h.hookable = false
	h.mu.Unlock()
}

// ensureNonBlocking lazily promotes fd to O_NONBLOCK. Safe to call
// repeatedly; only the first call touches the kernel.
func (h *HookInfo) ensureNonBlocking() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nonblockSet {
		return nil
	}
	if err := unix.SetNonblock(h.fd, true); err != nil {
		return err
	}
	h.nonblockSet = true
	return nil
}

func (h *HookInfo) loadTimeouts() {
	if h.timeoutsRead {
		return
	}
	h.timeoutsRead = true
	if tv, err := unix.GetsockoptTimeval(h.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO); err == nil {
		h.recvTimeout = timevalToDuration(tv)
	}
	if tv, err := unix.GetsockoptTimeval(h.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO); err == nil {
		h.sendTimeout = timevalToDuration(tv)
	}
}

func timevalToDuration(tv *unix.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// RecvTimeout returns the cached SO_RCVTIMEO deadline, or 0 ("no deadline")
// if unset. Derived lazily from the socket on first call.
func (h *HookInfo) RecvTimeout() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadTimeouts()
	return h.recvTimeout
}

// SendTimeout returns the cached SO_SNDTIMEO deadline, or 0 if unset.
func (h *HookInfo) SendTimeout() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadTimeouts()
	return h.sendTimeout
}

// SetRecvTimeout overrides the cached recv deadline without touching the
// kernel socket option — used by RecvN/Recv callers that want a one-shot
// deadline tighter than the socket-wide setting.
func (h *HookInfo) SetRecvTimeout(d time.Duration) {
	h.mu.Lock()
	h.timeoutsRead = true
	h.recvTimeout = d
	h.mu.Unlock()
}

// SetSendTimeout is SetRecvTimeout's send-side counterpart.
func (h *HookInfo) SetSendTimeout(d time.Duration) {
	h.mu.Lock()
	h.timeoutsRead = true
	h.sendTimeout = d
	h.mu.Unlock()
}

// Hookable reports whether this fd should go through the coroutine-aware
// suspend/resume path at all. Sockets obtained outside netco (e.g. an fd
// inherited from a non-gocoro caller) can mark themselves unhookable to
// fall back to ordinary blocking semantics — mirroring the source design's
// "non-coroutine-context calls pass through to the real syscall" rule.
func (h *HookInfo) Hookable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hookable
}
