package codec

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/proto"
)

// ProtobufName is the registry name of the protobuf codec.
const ProtobufName = "proto"

var messageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

type protobufCodec struct{}

// Protobuf returns a codec for values implementing proto.Message.
func Protobuf() Codec { return protobufCodec{} }

func (protobufCodec) Name() string { return ProtobufName }

func (protobufCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Mark(errors.Newf("codec: %T is not a proto.Message", v), ErrUnsupported)
	}
	return proto.Marshal(msg)
}

// Unmarshal accepts either a message (*T) or a pointer to a message pointer
// (**T); the latter is allocated when nil.
func (protobufCodec) Unmarshal(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Mark(errors.Newf("codec: cannot decode into %T", v), ErrUnsupported)
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer || !elem.Type().Implements(messageType) {
		return errors.Mark(errors.Newf("codec: cannot decode into %T", v), ErrUnsupported)
	}
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	return proto.Unmarshal(data, elem.Interface().(proto.Message))
}
