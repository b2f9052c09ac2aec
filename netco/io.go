//go:build linux || darwin

package netco

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
)

// recv is one non-blocking read
// attempt, suspending for readability on EWOULDBLOCK/EAGAIN. Returns
// (n, nil) with n possibly 0 < n < len(buf) — a single recv never loops to
// fill buf (that's RecvN).
func recv(ctx context.Context, fd int, hook *HookInfo, buf []byte, deadline time.Duration) (int, error) {
	if !hook.Hookable() {
		return unix.Read(fd, buf)
	}
	if err := hook.ensureNonBlocking(); err != nil {
		return 0, err
	}
	if deadline <= 0 {
		deadline = hook.RecvTimeout()
	}
	for {
		n, err := unix.Read(fd, buf)
		if err == nil {
			return n, nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, err
		}
		ev, err := NewIoEvent(ctx, fd, gocoro.EventRead)
		if err != nil {
			return 0, err
		}
		if _, err := ev.Wait(deadline); err != nil {
			return 0, err
		}
	}
}

// recvN reads exactly len(buf) bytes
// (short of an error or an orderly close, reported as io.ErrUnexpectedEOF
// semantics via n < len(buf) with a nil error on EOF — callers check n).
// This is the supplemented Open Question 2 resolution: n always reflects
// bytes actually written/read so far, never discarded (see netco/io.go).
func recvN(ctx context.Context, fd int, hook *HookInfo, buf []byte, deadline time.Duration) (int, error) {
	if !hook.Hookable() {
		total := 0
		for total < len(buf) {
			n, err := unix.Read(fd, buf[total:])
			if err != nil {
				return total, err
			}
			if n == 0 {
				return total, nil
			}
			total += n
		}
		return total, nil
	}
	if err := hook.ensureNonBlocking(); err != nil {
		return 0, err
	}
	if deadline <= 0 {
		deadline = hook.RecvTimeout()
	}
	total := 0
	for total < len(buf) {
		n, err := unix.Read(fd, buf[total:])
		if err == nil {
			if n == 0 {
				return total, nil // orderly close short of len(buf)
			}
			total += n
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return total, err
		}
		ev, err := NewIoEvent(ctx, fd, gocoro.EventRead)
		if err != nil {
			return total, err
		}
		if _, err := ev.Wait(deadline); err != nil {
			return total, err
		}
	}
	return total, nil
}

// send is chunked internally by
// the kernel's own send buffer rather than a fixed tcp_max_send_size
// chunk — that cap is applied by callers (see Config.TCPMaxSendSize) when
// they choose how much of a larger payload to hand to a single Send call.
// Returns bytes actually written before any error, per the same
// never-discard resolution as recvN.
func send(ctx context.Context, fd int, hook *HookInfo, buf []byte, deadline time.Duration) (int, error) {
	if !hook.Hookable() {
		total := 0
		for total < len(buf) {
			n, err := unix.Write(fd, buf[total:])
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}
	if err := hook.ensureNonBlocking(); err != nil {
		return 0, err
	}
	if deadline <= 0 {
		deadline = hook.SendTimeout()
	}
	total := 0
	for total < len(buf) {
		n, err := unix.Write(fd, buf[total:])
		if err == nil {
			total += n
			continue
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return total, err
		}
		ev, err := NewIoEvent(ctx, fd, gocoro.EventWrite)
		if err != nil {
			return total, err
		}
		if _, err := ev.Wait(deadline); err != nil {
			return total, err
		}
	}
	return total, nil
}
