// Package codec holds the serializers used by out-of-process cache providers,
// registered by name. In-process providers never encode values.
package codec

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownCodec is returned when looking up a codec name that was never
	// registered.
	ErrUnknownCodec = errors.New("codec: unknown codec")
	// ErrUnsupported is returned when a codec cannot encode or decode a value
	// of the given type.
	ErrUnsupported = errors.New("codec: unsupported type")
)

// Codec encodes values to bytes and back.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps codec names to codecs.
type Registry struct {
	mutex  sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns a registry holding codecs. It panics on duplicate names.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Default returns a registry with the msgpack and protobuf codecs.
func Default() *Registry {
	return NewRegistry(MsgPack(), Protobuf())
}

// Register adds c under c.Name().
func (r *Registry) Register(c Codec) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.codecs[c.Name()]; ok {
		return errors.Newf("codec: %q is already registered", c.Name())
	}
	r.codecs[c.Name()] = c
	return nil
}

// Lookup returns the codec registered under name.
func (r *Registry) Lookup(name string) (Codec, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	c, ok := r.codecs[name]
	if !ok {
		return nil, errors.Mark(errors.Newf("codec: no codec named %q", name), ErrUnknownCodec)
	}
	return c, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
