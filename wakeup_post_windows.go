//go:build windows

package gocoro

import "golang.org/x/sys/windows"

// postWakeup posts a completion packet with a nil overlapped pointer,
// which FastPoller.PollIO recognizes as a generic wake-up rather than an
// fd-readiness event.
func postWakeup(iocp windows.Handle) error {
	return windows.PostQueuedCompletionStatus(iocp, 0, 0, nil)
}

// drainWakeFd is a no-op on Windows: there is nothing to drain, the
// completion packet itself *is* the event.
func drainWakeFd(int) {}
