//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package gocoro

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

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
	read  dirWaiter
	write dirWaiter
}

// FastPoller implements Poller on BSD-family systems using kqueue. Level
// semantics are used for both directions per spec (no EV_ONESHOT), matching
// the source design's explicit choice not to use kqueue one-shot.
type FastPoller struct {
	kq        int32
	wakeRead  int
	wakeWrite int
	wakePend  atomic.Bool
	eventBuf  [256]unix.Kevent_t
	fds       []fdInfo
	fdMu      sync.RWMutex
	closed    atomic.Bool
}

func (p *FastPoller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.fds = make([]fdInfo, maxFDs)

	readFd, writeFd, err := createWakeFd()
	if err != nil {
		_ = unix.Close(kq)
		return err
	}
	p.wakeRead, p.wakeWrite = readFd, writeFd
	if err := p.RegisterFD(readFd, EventRead, func(IOEvents) {
		p.wakePend.Store(false)
		drainWakeFd(p.wakeRead)
	}); err != nil {
		_ = unix.Close(kq)
		_ = unix.Close(readFd)
		_ = unix.Close(writeFd)
		return err
	}
	return nil
}

func (p *FastPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	_ = unix.Close(p.wakeRead)
	_ = unix.Close(p.wakeWrite)
	if p.kq > 0 {
		return unix.Close(int(p.kq))
	}
	return nil
}

// Signal wakes a thread blocked in PollIO via the self-pipe, deduplicating
// bursts of wake-ups between consumptions of the pending flag.
func (p *FastPoller) Signal() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if !p.wakePend.CompareAndSwap(false, true) {
		return nil
	}
	return postWakeup(p.wakeWrite)
}

func (p *FastPoller) growLocked(fd int) {
	if fd < len(p.fds) {
		return
	}
	newSize := fd*2 + 1
	if newSize > maxFDs {
		newSize = maxFDs
	}
	grown := make([]fdInfo, newSize)
	copy(grown, p.fds)
	p.fds = grown
}

// RegisterFD arms cb for every direction set in events. Each direction owns
// its own EVFILT_READ/EVFILT_WRITE registration, so a read waiter and a
// write waiter on the same fd coexist without disturbing each other.
// Registering a direction that is already armed returns
// ErrFDAlreadyRegistered.
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
	p.growLocked(fd)
	info := p.fds[fd]
	if (wantRead && info.read.active) || (wantWrite && info.write.active) {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}
	if wantRead {
		info.read = dirWaiter{callback: cb, active: true}
	}
	if wantWrite {
		info.write = dirWaiter{callback: cb, active: true}
	}
	p.fds[fd] = info
	p.fdMu.Unlock()

	var changes []unix.Kevent_t
	if wantRead {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	}
	if wantWrite {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(int(p.kq), changes, nil, nil); err != nil {
		p.fdMu.Lock()
		if wantRead {
			p.fds[fd].read = dirWaiter{}
		}
		if wantWrite {
			p.fds[fd].write = dirWaiter{}
		}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD disarms whichever directions are set in events, deleting
// only that direction's kqueue filter. A no-op for directions that were
// never armed.
func (p *FastPoller) UnregisterFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	p.fdMu.Lock()
	if fd >= len(p.fds) {
		p.fdMu.Unlock()
		return nil
	}
	info := p.fds[fd]
	removeRead := events&EventRead != 0 && info.read.active
	removeWrite := events&EventWrite != 0 && info.write.active
	if removeRead {
		info.read = dirWaiter{}
	}
	if removeWrite {
		info.write = dirWaiter{}
	}
	p.fds[fd] = info
	p.fdMu.Unlock()

	var changes []unix.Kevent_t
	if removeRead {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if removeWrite {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	if len(changes) == 0 {
		return nil
	}
	_, _ = unix.Kevent(int(p.kq), changes, nil, nil)
	return nil
}

// ModifyFD re-arms whichever of the already-registered directions appear in
// events, leaving their existing callbacks in place. Directions present in
// events but never registered via RegisterFD are left untouched.
func (p *FastPoller) ModifyFD(fd int, events IOEvents) error {
	p.fdMu.RLock()
	var info fdInfo
	if fd < len(p.fds) {
		info = p.fds[fd]
	}
	p.fdMu.RUnlock()
	if info.read.callback == nil && info.write.callback == nil {
		return ErrFDNotRegistered
	}

	if info.read.callback != nil && events&EventRead == 0 && info.read.active {
		if err := p.UnregisterFD(fd, EventRead); err != nil {
			return err
		}
	}
	if info.write.callback != nil && events&EventWrite == 0 && info.write.active {
		if err := p.UnregisterFD(fd, EventWrite); err != nil {
			return err
		}
	}
	if info.read.callback != nil && events&EventRead != 0 && !info.read.active {
		if err := p.RegisterFD(fd, EventRead, info.read.callback); err != nil {
			return err
		}
	}
	if info.write.callback != nil && events&EventWrite != 0 && !info.write.active {
		if err := p.RegisterFD(fd, EventWrite, info.write.callback); err != nil {
			return err
		}
	}
	return nil
}

func (p *FastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return -1, err
	}

	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		if fd < 0 {
			continue
		}
		p.fdMu.RLock()
		var info fdInfo
		if fd < len(p.fds) {
			info = p.fds[fd]
		}
		p.fdMu.RUnlock()

		var extra IOEvents
		if ev.Flags&unix.EV_EOF != 0 {
			extra |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			extra |= EventError
		}

		switch ev.Filter {
		case unix.EVFILT_READ:
			if info.read.active && info.read.callback != nil {
				info.read.callback(EventRead | extra)
			}
		case unix.EVFILT_WRITE:
			if info.write.active && info.write.callback != nil {
				info.write.callback(EventWrite | extra)
			}
		}
	}
	return n, nil
}
