package dist

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// reduceRequest is the frame a member sends to the rendezvous server for one
// collective round.
type reduceRequest struct {
	Group string    `msgpack:"group"`
	Rank  int       `msgpack:"rank"`
	Size  int       `msgpack:"size"`
	Round uint64    `msgpack:"round"`
	Data  []float32 `msgpack:"data"`
}

// reduceReply carries the averaged buffer, or the reason the round failed.
type reduceReply struct {
	Round uint64    `msgpack:"round"`
	Data  []float32 `msgpack:"data"`
	Error string    `msgpack:"error,omitempty"`
}

func encodeRequest(req *reduceRequest) ([]byte, error) {
	b, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode allreduce request: %w", err)
	}
	return b, nil
}

func decodeRequest(raw any) (*reduceRequest, error) {
	b, err := payloadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode allreduce request: %w", err)
	}
	var req reduceRequest
	if err := msgpack.Unmarshal(b, &req); err != nil {
		return nil, fmt.Errorf("decode allreduce request: %w", err)
	}
	return &req, nil
}

func encodeReply(reply *reduceReply) ([]byte, error) {
	b, err := msgpack.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("encode allreduce reply: %w", err)
	}
	return b, nil
}

func decodeReply(raw any) (*reduceReply, error) {
	b, err := payloadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode allreduce reply: %w", err)
	}
	var reply reduceReply
	if err := msgpack.Unmarshal(b, &reply); err != nil {
		return nil, fmt.Errorf("decode allreduce reply: %w", err)
	}
	return &reply, nil
}

// payloadBytes unwraps a binary socket.io argument.
func payloadBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case interface{ Bytes() []byte }:
		return v.Bytes(), nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", raw)
	}
}
