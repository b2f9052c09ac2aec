package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

var (
	// ErrBadMagic is returned by readFrame when a frame's header doesn't
	// start with the expected magic word.
	ErrBadMagic = errors.New("rpc: bad frame magic")

	// ErrFrameTooLarge is returned by readFrame when a frame's declared
	// length exceeds Config.RPCMaxMsgSize.
	ErrFrameTooLarge = errors.New("rpc: frame exceeds max message size")
)

// Request is one JSON-RPC call, framed per frame.go.
type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC reply.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// encodeRequest builds the JSON body for req. The method name — the one
// field in the envelope that can legitimately contain characters needing
// JSON escaping — is appended via jsonenc.AppendString, the same
// allocation-light escaper logiface's structured-logging stack uses for
// encoding hot string fields; id and params are fixed-shape and cheaper to
// emit with plain byte writes.
func encodeRequest(req *Request) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatUint(req.ID, 10))
	buf.WriteString(`,"method":`)
	buf.Write(jsonenc.AppendString(nil, req.Method))
	if len(req.Params) > 0 {
		buf.WriteString(`,"params":`)
		buf.Write(req.Params)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func decodeRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// encodeResponse mirrors encodeRequest: Error is the free-form string field
// so it goes through jsonenc.AppendString; Result is already well-formed
// JSON produced by the handler and is copied verbatim.
func encodeResponse(resp *Response) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	buf.WriteString(strconv.FormatUint(resp.ID, 10))
	if len(resp.Result) > 0 {
		buf.WriteString(`,"result":`)
		buf.Write(resp.Result)
	}
	if resp.Error != "" {
		buf.WriteString(`,"error":`)
		buf.Write(jsonenc.AppendString(nil, resp.Error))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func decodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
