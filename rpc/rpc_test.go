//go:build linux || darwin

package rpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
	"github.com/joeycumines/gocoro/netco"
)

func newTestManager(t *testing.T) (*gocoro.Manager, context.Context) {
	t.Helper()
	ctx := context.Background()
	m, err := gocoro.NewManager(ctx, gocoro.WithSchedulerCount(2))
	require.NoError(t, err)
	t.Cleanup(func() { m.Stop(ctx) })
	return m, ctx
}

func listenLoopback(t *testing.T) (*netco.TCPSocket, *net.TCPAddr) {
	t.Helper()
	listener, err := netco.NewTCPSocket(unix.AF_INET)
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Bind(addr))
	require.NoError(t, listener.Listen(8))

	sa, err := unix.Getsockname(listener.FD())
	require.NoError(t, err)
	inet4 := sa.(*unix.SockaddrInet4)
	return listener, &net.TCPAddr{IP: net.IPv4(inet4.Addr[0], inet4.Addr[1], inet4.Addr[2], inet4.Addr[3]), Port: inet4.Port}
}

func echo(ctx context.Context, req *Request) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{"echo": req.Params})
}

func TestServerClient_CallRoundTrip(t *testing.T) {
	m, ctx := newTestManager(t)
	listener, addr := listenLoopback(t)

	secret := []byte("s3cret")
	cfg := gocoro.DefaultConfig()
	server := NewServer(secret, echo, cfg)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.Go(serveCtx, func(ctx context.Context) { _ = server.Serve(ctx, m, listener) })

	client := NewClient(m, addr, secret, cfg, 2)
	defer client.Close()

	result := make(chan *Response, 1)
	errs := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		resp, err := client.Call(ctx, "ping", json.RawMessage(`"hi"`))
		if err != nil {
			errs <- err
			return
		}
		result <- resp
	})

	select {
	case resp := <-result:
		require.Empty(t, resp.Error)
		require.JSONEq(t, `{"echo":"hi"}`, string(resp.Result))
	case err := <-errs:
		t.Fatalf("call failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("call never completed")
	}
}

func TestServerClient_WrongSecretFailsHandshake(t *testing.T) {
	m, ctx := newTestManager(t)
	listener, addr := listenLoopback(t)

	cfg := gocoro.DefaultConfig()
	server := NewServer([]byte("real-secret"), echo, cfg)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.Go(serveCtx, func(ctx context.Context) { _ = server.Serve(ctx, m, listener) })

	client := NewClient(m, addr, []byte("wrong-secret"), cfg, 1)
	defer client.Close()

	errs := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		_, err := client.Call(ctx, "ping", nil)
		errs <- err
	})

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("handshake mismatch never surfaced as an error")
	}
}

func TestServer_ServerHandshake_RejectsBadProof(t *testing.T) {
	m, ctx := newTestManager(t)
	listener, addr := listenLoopback(t)

	server := NewServer([]byte("secret"), echo, gocoro.DefaultConfig())
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.Go(serveCtx, func(ctx context.Context) { _ = server.Serve(ctx, m, listener) })

	done := make(chan error, 1)
	rejected := make(chan error, 1)
	m.Go(ctx, func(ctx context.Context) {
		conn, err := netco.NewTCPSocket(unix.AF_INET)
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		if err := conn.Connect(ctx, addr, time.Second); err != nil {
			done <- err
			return
		}
		// receive the nonce, reply with garbage instead of a real proof
		if _, err := readFrame(ctx, conn, 64, time.Second); err != nil {
			done <- err
			return
		}
		if err := writeFrame(ctx, conn, []byte("not-a-real-proof"), time.Second); err != nil {
			done <- err
			return
		}
		done <- nil
		// the server drops the connection instead of serving it
		_, err = readFrame(ctx, conn, 1024, time.Second)
		rejected <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err) // writing the bad proof itself should succeed
	case <-time.After(5 * time.Second):
		t.Fatal("handshake exchange never completed")
	}

	select {
	case err := <-rejected:
		require.Error(t, err, "server should close the connection after a bad proof")
		require.NotErrorIs(t, err, gocoro.ErrTimeout, "connection was left open, not closed")
	case <-time.After(5 * time.Second):
		t.Fatal("server never closed the connection after a bad proof")
	}
}
