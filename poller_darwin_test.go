//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package gocoro

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newSocketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newTestPoller(t *testing.T) *FastPoller {
	t.Helper()
	p := &FastPoller{}
	require.NoError(t, p.Init())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// TestFastPoller_IndependentReadWriteWaiters proves a read waiter and a
// write waiter can both be armed on the same fd at once, and both fire
// independently when their direction becomes ready — the invariant the
// single-callback fdInfo used to violate.
func TestFastPoller_IndependentReadWriteWaiters(t *testing.T) {
	a, b := newSocketpair(t)
	p := newTestPoller(t)

	var mu sync.Mutex
	var readFired, writeFired bool
	require.NoError(t, p.RegisterFD(a, EventWrite, func(IOEvents) {
		mu.Lock()
		writeFired = true
		mu.Unlock()
	}))
	require.NoError(t, p.RegisterFD(a, EventRead, func(IOEvents) {
		mu.Lock()
		readFired = true
		mu.Unlock()
	}))

	_, err := p.PollIO(1000)
	require.NoError(t, err)
	mu.Lock()
	require.True(t, writeFired, "write waiter should have fired")
	require.False(t, readFired, "read waiter should not have fired yet")
	mu.Unlock()

	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	_, err = p.PollIO(1000)
	require.NoError(t, err)
	mu.Lock()
	require.True(t, readFired, "read waiter should have fired once data arrived")
	mu.Unlock()
}

// TestFastPoller_RegisterFD_SameDirectionConflict proves registering the
// same direction twice on the same fd is rejected rather than silently
// overwriting the existing waiter, while the other direction stays free.
func TestFastPoller_RegisterFD_SameDirectionConflict(t *testing.T) {
	a, _ := newSocketpair(t)
	p := newTestPoller(t)

	require.NoError(t, p.RegisterFD(a, EventRead, func(IOEvents) {}))
	err := p.RegisterFD(a, EventRead, func(IOEvents) {})
	require.ErrorIs(t, err, ErrFDAlreadyRegistered)

	require.NoError(t, p.RegisterFD(a, EventWrite, func(IOEvents) {}))
}

// TestFastPoller_UnregisterFD_LeavesOtherDirectionArmed proves
// UnregisterFD removes only the requested direction's kqueue filter, so a
// concurrently-armed other-direction waiter survives.
func TestFastPoller_UnregisterFD_LeavesOtherDirectionArmed(t *testing.T) {
	a, b := newSocketpair(t)
	p := newTestPoller(t)

	writeFired := make(chan struct{}, 1)
	readFired := make(chan struct{}, 1)
	require.NoError(t, p.RegisterFD(a, EventWrite, func(IOEvents) {
		select {
		case writeFired <- struct{}{}:
		default:
		}
	}))
	require.NoError(t, p.RegisterFD(a, EventRead, func(IOEvents) {
		select {
		case readFired <- struct{}{}:
		default:
		}
	}))

	_, err := p.PollIO(1000)
	require.NoError(t, err)
	select {
	case <-writeFired:
	default:
		t.Fatal("expected write waiter to fire")
	}

	require.NoError(t, p.UnregisterFD(a, EventWrite))

	_, err = unix.Write(b, []byte("y"))
	require.NoError(t, err)
	_, err = p.PollIO(1000)
	require.NoError(t, err)
	select {
	case <-readFired:
	default:
		t.Fatal("expected read waiter to still fire after unregistering write only")
	}

	require.NoError(t, p.UnregisterFD(a, EventRead))
}
