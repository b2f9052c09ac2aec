//go:build linux

package gocoro

import "golang.org/x/sys/unix"

const (
	efdCloexec  = unix.EFD_CLOEXEC
	efdNonblock = unix.EFD_NONBLOCK
)

// createWakeFd creates an eventfd used as both the read and write end of
// the scheduler's wake-up signal.
func createWakeFd() (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(0, efdCloexec|efdNonblock)
	return fd, fd, err
}
