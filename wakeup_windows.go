//go:build windows

package gocoro

// createWakeFd is a no-op on Windows: wake-up is delivered by posting a
// completion packet with a nil overlapped pointer directly to the IOCP
// handle (see FastPoller.PollIO and FastPoller.Signal), so there is no
// separate wake descriptor to create.
func createWakeFd() (readFd, writeFd int, err error) {
	return -1, -1, nil
}
