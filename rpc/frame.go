//go:build linux || darwin

package rpc

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/joeycumines/gocoro/netco"
)

// magic is the frame header's fixed first word, matching the coost RPC
// protocol's magic-number framing.
const magic uint32 = 0xBADDAD

const headerSize = 8 // uint32 magic + uint32 len, big-endian

// writeFrame sends payload as one length-prefixed frame.
func writeFrame(ctx context.Context, sock *netco.TCPSocket, payload []byte, deadline time.Duration) error {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(payload)))

	if _, err := sock.Send(ctx, hdr[:], deadline); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := sock.Send(ctx, payload, deadline)
	return err
}

// readFrame reads one length-prefixed frame, rejecting bad magic and
// oversize frames per Config.RPCMaxMsgSize (the original's
// rpc_max_msg_size flag.)
func readFrame(ctx context.Context, sock *netco.TCPSocket, maxSize int, deadline time.Duration) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := sock.RecvN(ctx, hdr[:], deadline); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint32(hdr[0:4]) != magic {
		return nil, ErrBadMagic
	}
	n := int(binary.BigEndian.Uint32(hdr[4:8]))
	if n < 0 || n > maxSize {
		return nil, ErrFrameTooLarge
	}
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, n)
	if _, err := sock.RecvN(ctx, body, deadline); err != nil {
		return nil, err
	}
	return body, nil
}
