// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gocoro provides a coroutine-style programming model over Go's own
// goroutine scheduler: code written with ordinary blocking calls (sleep,
// connect, accept, recv, send) is transparently suspended and resumed by a
// small set of cooperating [Scheduler] instances, each running its loop on
// its own goroutine and driving its own I/O [FastPoller] and timer wheel.
//
// # Architecture
//
// A [Manager] owns N [Scheduler]s (default: runtime.NumCPU()). [Manager.Go]
// hands a function to the manager, which round-robins it onto a scheduler and runs
// it on its own goroutine. Inside that goroutine, calls through the netco
// package (coroutine-aware sockets) suspend only the calling goroutine: the
// owning scheduler's loop goroutine keeps driving every other coroutine via
// epoll/kqueue/IOCP.
//
// Unlike the C++ runtime this package's design is ported from, there is no
// manual stack switching: every coroutine is a real goroutine, so stack
// isolation and growth are free. What is ported faithfully is the
// scheduler's run loop shape (poll → ready I/O → new/ready tasks → timeouts),
// the single-waiter-per-(fd,direction) poller invariant, the CAS-mediated
// timeout/readiness race, and the coroutine-aware synchronization primitives
// in the sync subpackage.
//
// # Platform support
//
// I/O polling uses epoll on Linux, kqueue on Darwin/BSD, and IOCP on
// Windows.
package gocoro
