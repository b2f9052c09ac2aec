//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package gocoro

import "golang.org/x/sys/unix"

// createWakeFd creates a self-pipe used to wake a kqueue-blocked scheduler
// from another thread, since kqueue has no eventfd equivalent.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}
