package store

import (
	"encoding/json"
	"fmt"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes values stored in a Backend.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) Name() string                       { return "msgpack" }

// JSONCodec is the default codec.
var JSONCodec Codec = jsonCodec{}

// MsgpackCodec trades readability in redis-cli for smaller entries.
var MsgpackCodec Codec = msgpackCodec{}

// CodecByName resolves "json" or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSONCodec.Name():
		return JSONCodec, nil
	case MsgpackCodec.Name():
		return MsgpackCodec, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
