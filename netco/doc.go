// Package netco implements the coroutine-aware socket surface: the
// observable behavior of the source design's syscall-hook layer (lazy
// non-blocking promotion, EWOULDBLOCK→register→yield→retry,
// SO_SNDTIMEO/SO_RCVTIMEO-derived deadlines) over raw, non-blocking POSIX
// file descriptors, without libc interposition (the
// interception mechanism doesn't port, the behavior still does).
//
// A call on a hookable (non-blocking) socket that has to wait for
// readiness requires a context produced by gocoro.Manager.Go; from outside
// a coroutine it returns gocoro.ErrNotInCoroutine. Calls that complete
// without waiting, and calls on sockets that are not hookable (plain
// blocking syscalls), need no coroutine context.
package netco
