//go:build linux

package gocoro

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs bounds the direct-indexed fd table. Chosen to match common
// ulimit -n ceilings without forcing a map lookup on the hot path.
const maxFDs = 65536

// IOEvents represents the type of I/O events a direction can be registered
// or notified for.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// dirWaiter holds the callback armed for one direction of one fd.
type dirWaiter struct {
	callback IOCallback
	active   bool
}

// fdInfo stores per-fd registration state as two independent direction
// slots, so a read waiter and a write waiter can coexist on the same fd
// without clobbering each other (at most one coroutine per (fd,
// direction), not per fd).
type fdInfo struct {
	read    dirWaiter
	write   dirWaiter
	inEpoll bool
}

// mask computes the epoll interest set implied by whichever directions are
// currently active.
func (info fdInfo) mask() uint32 {
	var m uint32
	if info.read.active {
		m |= unix.EPOLLIN
	}
	if info.write.active {
		m |= unix.EPOLLOUT
	}
	return m
}

// FastPoller implements Poller on Linux using epoll, with direct fd-indexed
// lookup instead of a map (ported from eventloop's FastPoller).
type FastPoller struct {
	epfd      int32
	wakeRead  int
	wakeWrite int
	wakePend  atomic.Bool
	eventBuf  [256]unix.EpollEvent
	fds       [maxFDs]fdInfo
	fdMu      sync.RWMutex
	closed    atomic.Bool
}

// Init creates the epoll instance and registers a self-pipe (eventfd) used
// by Signal for cross-thread wake-ups.
func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)

	readFd, writeFd, err := createWakeFd()
	if err != nil {
		_ = unix.Close(epfd)
		return err
	}
	p.wakeRead, p.wakeWrite = readFd, writeFd
	if err := p.RegisterFD(readFd, EventRead, func(IOEvents) {
		p.wakePend.Store(false)
		drainWakeFd(p.wakeRead)
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(readFd)
		return err
	}
	return nil
}

// Close releases the epoll fd and wake descriptor. Safe to call more than once.
func (p *FastPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	_ = unix.Close(p.wakeRead)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

// Signal wakes a thread blocked in PollIO. Writes are deduplicated so
// bursts of signal() calls cost at most one syscall between wake-ups.
func (p *FastPoller) Signal() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if !p.wakePend.CompareAndSwap(false, true) {
		return nil
	}
	return postWakeup(p.wakeWrite)
}

// RegisterFD arms cb for every direction set in events. Each direction is
// independent: registering EventRead while EventWrite is already armed on
// the same fd widens the epoll interest mask instead of replacing it.
// Registering a direction that is already armed returns
// ErrFDAlreadyRegistered rather than silently overwriting the existing
// waiter.
func (p *FastPoller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	wantRead := events&EventRead != 0
	wantWrite := events&EventWrite != 0

	p.fdMu.Lock()
	prev := p.fds[fd]
	if (wantRead && prev.read.active) || (wantWrite && prev.write.active) {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	next := prev
	if wantRead {
		next.read = dirWaiter{callback: cb, active: true}
	}
	if wantWrite {
		next.write = dirWaiter{callback: cb, active: true}
	}
	op := unix.EPOLL_CTL_ADD
	if next.inEpoll {
		op = unix.EPOLL_CTL_MOD
	}
	next.inEpoll = true
	p.fds[fd] = next
	p.fdMu.Unlock()

	ev := unix.EpollEvent{Fd: int32(fd), Events: next.mask()}
	if err := unix.EpollCtl(int(p.epfd), op, fd, &ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = prev
		p.fdMu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD disarms whichever directions are set in events, narrowing
// the epoll interest mask. The fd is only removed from epoll entirely once
// neither direction remains armed. A no-op if fd was never registered.
func (p *FastPoller) UnregisterFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	info := p.fds[fd]
	if !info.inEpoll {
		p.fdMu.Unlock()
		return nil
	}
	if events&EventRead != 0 {
		info.read = dirWaiter{}
	}
	if events&EventWrite != 0 {
		info.write = dirWaiter{}
	}
	stillArmed := info.read.active || info.write.active
	if !stillArmed {
		info.inEpoll = false
	}
	p.fds[fd] = info
	p.fdMu.Unlock()

	if !stillArmed {
		_ = unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
		return nil
	}
	ev := unix.EpollEvent{Fd: int32(fd), Events: info.mask()}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, &ev)
}

// ModifyFD re-arms whichever of the already-registered directions appear in
// events, leaving their existing callbacks in place; it cannot arm a
// direction that has never been through RegisterFD (use RegisterFD for
// that). Returns ErrFDNotRegistered if fd isn't in epoll at all.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	info := p.fds[fd]
	if !info.inEpoll {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	info.read.active = events&EventRead != 0 && info.read.callback != nil
	info.write.active = events&EventWrite != 0 && info.write.callback != nil
	p.fds[fd] = info
	p.fdMu.Unlock()

	ev := unix.EpollEvent{Fd: int32(fd), Events: info.mask()}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, &ev)
}

// PollIO blocks until at least one registered fd is ready or timeoutMs
// elapses, dispatching each ready direction's callback independently
// before returning the event count. A signal interrupt is not treated as
// an error.
func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return -1, err
	}

	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Fd)
		if fd < 0 || fd >= maxFDs {
			continue
		}

		p.fdMu.RLock()
		info := p.fds[fd]
		p.fdMu.RUnlock()

		var extra IOEvents
		if ev.Events&unix.EPOLLERR != 0 {
			extra |= EventError
		}
		if ev.Events&unix.EPOLLHUP != 0 {
			extra |= EventHangup
		}

		if info.read.active && info.read.callback != nil && ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			info.read.callback(EventRead | extra)
		}
		if info.write.active && info.write.callback != nil && ev.Events&unix.EPOLLOUT != 0 {
			info.write.callback(EventWrite | extra)
		}
	}
	return n, nil
}
