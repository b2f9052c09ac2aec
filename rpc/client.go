//go:build linux || darwin

package rpc

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/gocoro"
	"github.com/joeycumines/gocoro/netco"
	co "github.com/joeycumines/gocoro/sync"
)

// Client is a JSON-RPC client. Call runs over a co.Pool of
// already-authenticated connections to addr, so a busy client only pays
// the HMAC handshake cost once per pooled connection rather than once per
// call.
type Client struct {
	addr      *net.TCPAddr
	secret    []byte
	idleAfter time.Duration
	maxMsg    int
	pool      *co.Pool[*netco.TCPSocket]
	nextID    atomic.Uint64
}

// NewClient builds a Client dialing addr, pooling up to poolSize
// connections per scheduler of m.
func NewClient(m *gocoro.Manager, addr *net.TCPAddr, secret []byte, cfg gocoro.Config, poolSize int) *Client {
	c := &Client{addr: addr, secret: secret, idleAfter: cfg.RPCConnTimeout, maxMsg: cfg.RPCMaxMsgSize}
	c.pool = co.NewPool(m, poolSize,
		func() *netco.TCPSocket { return nil }, // lazily dialed in Call; see acquire
		func(s *netco.TCPSocket) {
			if s != nil {
				_ = s.Close()
			}
		},
	)
	return c
}

// Call sends req and waits for the matching Response,
// "JSON-based RPC server/client" demo requirement. Must be called from
// within a coroutine.
func (c *Client) Call(ctx context.Context, method string, params json.RawMessage) (*Response, error) {
	req := &Request{ID: c.nextID.Add(1), Method: method, Params: params}

	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := writeFrame(ctx, conn, encodeRequest(req), c.idleAfter); err != nil {
		conn.Close()
		return nil, err
	}
	body, err := readFrame(ctx, conn, c.maxMsg, c.idleAfter)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := decodeResponse(body)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c.pool.Put(ctx, conn)
	return resp, nil
}

// acquire draws a pooled connection, dialing and handshaking a fresh one
// when the pool slot is empty (NewPool's create callback can't itself
// suspend, so the dial happens here instead, lazily, the first time a slot
// is drawn empty).
func (c *Client) acquire(ctx context.Context) (*netco.TCPSocket, error) {
	conn := c.pool.Get(ctx)
	if conn != nil {
		return conn, nil
	}
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) (*netco.TCPSocket, error) {
	family := unixFamilyFor(c.addr)
	sock, err := netco.NewTCPSocket(family)
	if err != nil {
		return nil, err
	}
	if err := sock.Connect(ctx, c.addr, c.idleAfter); err != nil {
		sock.Close()
		return nil, err
	}
	if err := c.clientHandshake(ctx, sock); err != nil {
		sock.Close()
		return nil, err
	}
	return sock, nil
}

// clientHandshake implements the challenge-response side of auth(): receive
// the server's nonce, answer with HMAC-SHA256(secret, nonce).
func (c *Client) clientHandshake(ctx context.Context, conn *netco.TCPSocket) error {
	nonce, err := readFrame(ctx, conn, 64, c.idleAfter)
	if err != nil {
		return err
	}
	proof := hmacHex(c.secret, nonce)
	return writeFrame(ctx, conn, []byte(proof), c.idleAfter)
}

// Close destroys every pooled connection.
func (c *Client) Close() { c.pool.Close() }

func unixFamilyFor(addr *net.TCPAddr) int {
	if addr.IP.To4() != nil {
		return unix.AF_INET
	}
	return unix.AF_INET6
}
