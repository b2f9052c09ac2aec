package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequest_RoundTrip(t *testing.T) {
	req := &Request{ID: 42, Method: "echo", Params: json.RawMessage(`{"x":1}`)}
	body := encodeRequest(req)

	got, err := decodeRequest(body)
	require.NoError(t, err)
	require.Equal(t, req.ID, got.ID)
	require.Equal(t, req.Method, got.Method)
	require.JSONEq(t, string(req.Params), string(got.Params))
}

func TestEncodeDecodeRequest_EscapesMethod(t *testing.T) {
	req := &Request{ID: 1, Method: `quote"injection`}
	body := encodeRequest(req)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))

	got, err := decodeRequest(body)
	require.NoError(t, err)
	require.Equal(t, req.Method, got.Method)
}

func TestEncodeDecodeResponse_RoundTrip(t *testing.T) {
	resp := &Response{ID: 7, Result: json.RawMessage(`"ok"`)}
	body := encodeResponse(resp)

	got, err := decodeResponse(body)
	require.NoError(t, err)
	require.Equal(t, resp.ID, got.ID)
	require.JSONEq(t, string(resp.Result), string(got.Result))
	require.Empty(t, got.Error)
}

func TestEncodeDecodeResponse_ErrorField(t *testing.T) {
	resp := &Response{ID: 3, Error: "boom"}
	body := encodeResponse(resp)

	got, err := decodeResponse(body)
	require.NoError(t, err)
	require.Equal(t, "boom", got.Error)
	require.Empty(t, got.Result)
}

func TestDecodeRequest_BadJSON(t *testing.T) {
	_, err := decodeRequest([]byte("not json"))
	require.Error(t, err)
}
