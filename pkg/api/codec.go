// Package api defines the hearth RPC surface: message types, procedure
// names, and connect handler and client constructors.
//
// Messages are plain Go structs exchanged as JSON, so clients in any
// language can call the server with a connect or plain HTTP POST.
package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// Codec marshals messages as JSON. It replaces connect's protobuf JSON
// codec, which only accepts proto messages.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}
