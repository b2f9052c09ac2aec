//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package gocoro

import "golang.org/x/sys/unix"

// postWakeup writes a single word to the wake pipe/eventfd, following the
// source design's "only one write occurs until the handler resets the
// signaled flag" rule (the dedup itself lives in FastPoller.Signal).
func postWakeup(writeFd int) error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(writeFd, one[:])
	return err
}

// drainWakeFd drains every pending wake-up word from the read end.
func drainWakeFd(readFd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(readFd, buf[:]); err != nil {
			return
		}
	}
}
