package netco

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
)

func newTestManager(t *testing.T) (*gocoro.Manager, context.Context) {
	t.Helper()
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(1))
	require.NoError(t, err)
	t.Cleanup(func() { m.Stop(ctx) })
	return m, ctx
}

func loopbackAddr(t *testing.T) *net.TCPAddr {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return addr
}

func TestTCPSocket_AcceptConnectRoundTrip(t *testing.T) {
	m, ctx := newTestManager(t)

	listener, err := NewTCPSocket(unix.AF_INET)
	require.NoError(t, err)
	defer listener.Close()
	require.NoError(t, listener.Bind(loopbackAddr(t)))
	require.NoError(t, listener.Listen(8))

	boundAddr, err := unix.Getsockname(listener.FD())
	require.NoError(t, err)
	dialAddr := sockaddrToAddr(boundAddr).(*net.TCPAddr)

	serverDone := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		conn, _, err := listener.Accept(ctx)
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := conn.RecvN(ctx, buf, 0); err != nil {
			serverDone <- err
			return
		}
		if string(buf) != "hello" {
			serverDone <- fmt.Errorf("server got %q, want %q", buf, "hello")
			return
		}
		_, err = conn.Send(ctx, []byte("world"), 0)
		serverDone <- err
	})

	clientDone := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		client, err := NewTCPSocket(unix.AF_INET)
		if err != nil {
			clientDone <- err
			return
		}
		defer client.Close()
		if err := client.Connect(ctx, dialAddr, time.Second); err != nil {
			clientDone <- err
			return
		}
		if _, err := client.Send(ctx, []byte("hello"), 0); err != nil {
			clientDone <- err
			return
		}
		buf := make([]byte, 5)
		if _, err := client.RecvN(ctx, buf, 0); err != nil {
			clientDone <- err
			return
		}
		if string(buf) != "world" {
			clientDone <- fmt.Errorf("client got %q, want %q", buf, "world")
			return
		}
		clientDone <- nil
	})

	for i := 0; i < 2; i++ {
		select {
		case err := <-serverDone:
			require.NoError(t, err)
		case err := <-clientDone:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("round trip never completed")
		}
	}
}

func TestTCPSocket_RecvTimeout(t *testing.T) {
	m, ctx := newTestManager(t)

	listener, err := NewTCPSocket(unix.AF_INET)
	require.NoError(t, err)
	defer listener.Close()
	require.NoError(t, listener.Bind(loopbackAddr(t)))
	require.NoError(t, listener.Listen(8))
	boundAddr, err := unix.Getsockname(listener.FD())
	require.NoError(t, err)
	dialAddr := sockaddrToAddr(boundAddr).(*net.TCPAddr)

	accepted := make(chan struct{})
	m.Go(ctx, func(ctx context.Context) {
		conn, _, err := listener.Accept(ctx)
		require.NoError(t, err)
		defer conn.Close()
		close(accepted)
		<-ctx.Done()
	})

	result := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		client, err := NewTCPSocket(unix.AF_INET)
		require.NoError(t, err)
		defer client.Close()
		require.NoError(t, client.Connect(ctx, dialAddr, time.Second))
		buf := make([]byte, 1)
		_, err = client.Recv(ctx, buf, 50*time.Millisecond)
		result <- err
	})

	select {
	case err := <-result:
		require.ErrorIs(t, err, gocoro.ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("recv never timed out")
	}
}

func TestUDPSocket_SendRecv(t *testing.T) {
	m, ctx := newTestManager(t)

	server, err := NewUDPSocket(unix.AF_INET)
	require.NoError(t, err)
	defer server.Close()
	udpAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, server.Bind(udpAddr))
	boundAddr, err := unix.Getsockname(server.FD())
	require.NoError(t, err)
	boundTCP := sockaddrToAddr(boundAddr).(*net.TCPAddr)
	serverAddr := &net.UDPAddr{IP: boundTCP.IP, Port: boundTCP.Port}

	client, err := NewUDPSocket(unix.AF_INET)
	require.NoError(t, err)
	defer client.Close()

	done := make(chan error, 2)
	m.Go(ctx, func(ctx context.Context) {
		buf := make([]byte, 4)
		_, _, err := server.RecvFrom(ctx, buf, time.Second)
		if err == nil && string(buf) != "ping" {
			err = context.DeadlineExceeded
		}
		done <- err
	})
	m.Go(ctx, func(ctx context.Context) {
		done <- client.SendTo(ctx, []byte("ping"), serverAddr, time.Second)
	})

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("UDP exchange never completed")
		}
	}
}

func TestTCPSocket_UnhookableRecvBlocksWithoutCoroutine(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	a, b := fds[0], fds[1]
	defer unix.Close(b)

	adopted := NewTCPSocketFromFD(a)
	defer adopted.Close()
	require.False(t, adopted.hook.Hookable())

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = unix.Write(b, []byte("hi"))
	}()

	buf := make([]byte, 2)
	// ctx carries no coroutine at all: the hookable path would fail fast
	// with ErrNotInCoroutine on the first EAGAIN instead of actually
	// blocking for the write above.
	n, err := adopted.Recv(context.Background(), buf, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(buf))
}

func TestStrerror_FormatsErrno(t *testing.T) {
	s := Strerror(unix.ECONNREFUSED)
	require.Contains(t, s, "errno")
}
