package codec

import "github.com/vmihailenco/msgpack/v5"

// MsgPackName is the registry name of the msgpack codec.
const MsgPackName = "msgpack"

type msgpackCodec struct{}

// MsgPack returns a codec using msgpack. Most Go types work out of the box:
// primitives, structs with exported fields, maps, slices and pointers.
// Functions, channels and cyclic values fail to encode.
func MsgPack() Codec { return msgpackCodec{} }

func (msgpackCodec) Name() string { return MsgPackName }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
