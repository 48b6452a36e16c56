package datachannel

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Tayyab-Ali-786/Chattify/internal/signaling"
)

// Codec encodes control envelopes.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is what browsers speak.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// MsgpackCodec is used between two terminal peers. It reads the json struct
// tags so both codecs share one schema.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// SelectCodec picks the envelope encoding for a peer's client type.
func SelectCodec(peerClientType string) Codec {
	if peerClientType == signaling.ClientTypeCLI {
		return MsgpackCodec{}
	}

	// Default to JSON for web compatibility
	return JSONCodec{}
}

// sniffCodec guesses the encoding of an inbound frame. JSON envelopes are
// objects, so they always start with '{' (after optional whitespace).
func sniffCodec(data []byte) Codec {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return JSONCodec{}
	}
	return MsgpackCodec{}
}
