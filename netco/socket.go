//go:build linux || darwin

package netco

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
)

// TCPSocket is a non-blocking TCP file descriptor driven by a coroutine's
// scheduler Poller, implementing the observable behavior of the source
// design's co::tcp_socket without libc interposition.
type TCPSocket struct {
	fd   int
	hook *HookInfo
}

// NewTCPSocket creates an unbound, unconnected TCP socket for the given
// address family (unix.AF_INET or unix.AF_INET6).
func NewTCPSocket(family int) (*TCPSocket, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	return &TCPSocket{fd: fd, hook: newHookInfo(fd)}, nil
}

// NewTCPSocketFromFD adopts an existing TCP file descriptor (e.g. one
// inherited via systemd socket activation or passed down from a
// non-gocoro parent process) without touching its blocking mode. Such fds
// are marked unhookable: every call on the returned socket falls back to
// plain blocking syscalls instead of promoting the fd to O_NONBLOCK and
// suspending the calling coroutine on EAGAIN.
func NewTCPSocketFromFD(fd int) *TCPSocket {
	hook := newHookInfo(fd)
	hook.MarkUnhookable()
	return &TCPSocket{fd: fd, hook: hook}
}

// FD returns the underlying file descriptor, for callers that need to set
// additional socket options netco does not expose directly.
func (s *TCPSocket) FD() int { return s.fd }

// Bind binds the socket to addr.
func (s *TCPSocket) Bind(addr *net.TCPAddr) error {
	return unix.Bind(s.fd, tcpAddrToSockaddr(addr))
}

// Listen marks the socket as a passive listener with the given backlog.
func (s *TCPSocket) Listen(backlog int) error {
	return unix.Listen(s.fd, backlog)
}

// Accept suspends the calling coroutine until a connection is ready, then
// accepts it and returns a non-blocking TCPSocket for it. Must be called
// from within a coroutine.
func (s *TCPSocket) Accept(ctx context.Context) (*TCPSocket, net.Addr, error) {
	if !s.hook.Hookable() {
		nfd, sa, err := unix.Accept(s.fd)
		if err != nil {
			return nil, nil, err
		}
		return &TCPSocket{fd: nfd, hook: newHookInfo(nfd)}, sockaddrToAddr(sa), nil
	}
	if err := s.hook.ensureNonBlocking(); err != nil {
		return nil, nil, err
	}
	for {
		nfd, sa, err := unix.Accept(s.fd)
		if err == nil {
			if err := unix.SetNonblock(nfd, true); err != nil {
				_ = unix.Close(nfd)
				return nil, nil, err
			}
			return &TCPSocket{fd: nfd, hook: newHookInfo(nfd)}, sockaddrToAddr(sa), nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return nil, nil, err
		}
		ev, err := NewIoEvent(ctx, s.fd, gocoro.EventRead)
		if err != nil {
			return nil, nil, err
		}
		if _, err := ev.Wait(0); err != nil {
			return nil, nil, err
		}
	}
}

// Connect suspends the calling coroutine until the connection completes (or
// deadline elapses, if > 0).
func (s *TCPSocket) Connect(ctx context.Context, addr *net.TCPAddr, deadline time.Duration) error {
	if !s.hook.Hookable() {
		return unix.Connect(s.fd, tcpAddrToSockaddr(addr))
	}
	if err := s.hook.ensureNonBlocking(); err != nil {
		return err
	}
	err := unix.Connect(s.fd, tcpAddrToSockaddr(addr))
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return err
	}
	ev, err := NewIoEvent(ctx, s.fd, gocoro.EventWrite)
	if err != nil {
		return err
	}
	if _, err := ev.Wait(deadline); err != nil {
		return err
	}
	if soErr, gerr := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR); gerr == nil && soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// Close closes the socket.
func (s *TCPSocket) Close() error { return unix.Close(s.fd) }

// Shutdown shuts down the read, write, or both halves of the connection
// (unix.SHUT_RD/SHUT_WR/SHUT_RDWR).
func (s *TCPSocket) Shutdown(how int) error { return unix.Shutdown(s.fd, how) }

// Recv, RecvN, Send delegate to io.go; exposed as methods for ergonomics.
func (s *TCPSocket) Recv(ctx context.Context, buf []byte, deadline time.Duration) (int, error) {
	return recv(ctx, s.fd, s.hook, buf, deadline)
}

func (s *TCPSocket) RecvN(ctx context.Context, buf []byte, deadline time.Duration) (int, error) {
	return recvN(ctx, s.fd, s.hook, buf, deadline)
}

func (s *TCPSocket) Send(ctx context.Context, buf []byte, deadline time.Duration) (int, error) {
	return send(ctx, s.fd, s.hook, buf, deadline)
}

// UDPSocket is a non-blocking UDP file descriptor, mirroring TCPSocket for
// datagram traffic.
type UDPSocket struct {
	fd   int
	hook *HookInfo
}

// NewUDPSocket creates an unbound UDP socket for the given address family.
func NewUDPSocket(family int) (*UDPSocket, error) {
	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, err
	}
	return &UDPSocket{fd: fd, hook: newHookInfo(fd)}, nil
}

func (s *UDPSocket) FD() int { return s.fd }

// NewUDPSocketFromFD is NewTCPSocketFromFD's UDP counterpart: adopts an
// existing fd as unhookable, falling back to plain blocking syscalls.
func NewUDPSocketFromFD(fd int) *UDPSocket {
	hook := newHookInfo(fd)
	hook.MarkUnhookable()
	return &UDPSocket{fd: fd, hook: hook}
}

func (s *UDPSocket) Bind(addr *net.UDPAddr) error {
	return unix.Bind(s.fd, udpAddrToSockaddr(addr))
}

func (s *UDPSocket) Close() error { return unix.Close(s.fd) }

// RecvFrom suspends until a datagram is ready, returning its sender.
func (s *UDPSocket) RecvFrom(ctx context.Context, buf []byte, deadline time.Duration) (int, net.Addr, error) {
	if !s.hook.Hookable() {
		n, sa, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			return 0, nil, err
		}
		return n, sockaddrToAddr(sa), nil
	}
	if err := s.hook.ensureNonBlocking(); err != nil {
		return 0, nil, err
	}
	for {
		n, sa, err := unix.Recvfrom(s.fd, buf, 0)
		if err == nil {
			return n, sockaddrToAddr(sa), nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, nil, err
		}
		ev, err := NewIoEvent(ctx, s.fd, gocoro.EventRead)
		if err != nil {
			return 0, nil, err
		}
		if _, err := ev.Wait(deadline); err != nil {
			return 0, nil, err
		}
	}
}

// SendTo suspends until buf can be written to addr without blocking.
func (s *UDPSocket) SendTo(ctx context.Context, buf []byte, addr *net.UDPAddr, deadline time.Duration) error {
	sa := udpAddrToSockaddr(addr)
	if !s.hook.Hookable() {
		return unix.Sendto(s.fd, buf, 0, sa)
	}
	if err := s.hook.ensureNonBlocking(); err != nil {
		return err
	}
	for {
		err := unix.Sendto(s.fd, buf, 0, sa)
		if err == nil {
			return nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return err
		}
		ev, err := NewIoEvent(ctx, s.fd, gocoro.EventWrite)
		if err != nil {
			return err
		}
		if _, err := ev.Wait(deadline); err != nil {
			return err
		}
	}
}

// Strerror formats err the way the source design's co::strerror() does:
// falling back to the raw errno string for unix.Errno values so RPC/CLI
// error logs read the same as the original's libc-backed messages.
func Strerror(err error) string {
	if err == nil {
		return ""
	}
	if errno, ok := err.(unix.Errno); ok {
		return fmt.Sprintf("%s (errno %d)", errno.Error(), int(errno))
	}
	return err.Error()
}

func tcpAddrToSockaddr(addr *net.TCPAddr) unix.Sockaddr {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], addr.IP.To16())
	return &sa
}

func udpAddrToSockaddr(addr *net.UDPAddr) unix.Sockaddr {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], addr.IP.To16())
	return &sa
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	default:
		return nil
	}
}
