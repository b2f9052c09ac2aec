// Package rpc implements a JSON-RPC server and client over a gocoro
// coroutine runtime: a magic-prefixed, length-delimited frame format, an
// HMAC-SHA256 challenge-response handshake, and idle-connection reaping.
// Frames are {Magic uint32; Len uint32} big-endian headers followed by a
// JSON body.
package rpc
