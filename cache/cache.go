package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-cache/codec"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
)

// DefaultName is the name used for a provider registered with an empty name.
const DefaultName = "DefaultInMemory"

type Provider interface {
	// Name returns the name the provider is registered under.
	Name() string
	// MaxRandomSeconds returns the upper bound, in seconds, of the jitter
	// added to every expiration. Zero means jitter is disabled.
	MaxRandomSeconds() int

	// Get returns the value stored for key. found is false when the key is
	// missing or expired; that is not an error.
	Get(ctx context.Context, key string) (bool, any, error)
	// Set stores val under key for ttl, overwriting any previous value.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	// TrySet stores val only if no live entry exists for key. It reports
	// whether this call established the entry.
	TrySet(ctx context.Context, key string, val any, ttl time.Duration) (bool, error)
	// Exists reports whether a live entry exists for key.
	Exists(ctx context.Context, key string) (bool, error)
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// GetOrAdd returns the live value for key, or calls retriever on a miss,
	// stores its result with Set and returns it.
	GetOrAdd(ctx context.Context, key string, ttl time.Duration, retriever Retriever) (any, error)

	// Close releases background resources held by the provider.
	Close(ctx context.Context) error
}

// Retriever produces the value for a key on a cache miss.
type Retriever func(ctx context.Context) (any, error)

// Payload is a hit served in encoded form by an out-of-process provider. It
// carries the codec that produced it, so a composite hit decodes with the
// codec of whichever tier served it.
type Payload struct {
	Data  []byte
	Codec codec.Codec
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if p.Codec == nil {
		return errors.New("cache: payload has no codec")
	}
	if err := p.Codec.Unmarshal(p.Data, v); err != nil {
		return errors.Wrapf(err, "cache: failed to decode value with %s", p.Codec.Name())
	}
	return nil
}

// DefaultExpiryCheck is the default interval of the background sweep.
const DefaultExpiryCheck = time.Minute

// DefaultQueryTimeout is the per-operation timeout for providers that
// perform I/O.
const DefaultQueryTimeout = 5 * time.Second

// DefaultShards is the default number of entry store shards.
const DefaultShards = 32

// config holds the resolved options of a provider.
type config struct {
	now          func() time.Time
	logger       logger.Logger
	expiryCheck  time.Duration
	shards       int
	singleFlight bool
	queryTimeout time.Duration
	prefix       string
	codec        codec.Codec
	closeClient  bool
}

// Option configures a Provider.
type Option func(*config)

func defaultConfig() config {
	return config{
		now:          time.Now,
		logger:       logger.NewConsoleLogger(logger.LevelNone),
		expiryCheck:  DefaultExpiryCheck,
		shards:       DefaultShards,
		queryTimeout: DefaultQueryTimeout,
		codec:        codec.MsgPack(),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock replaces time.Now as the provider's time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used by the provider.
func WithLogger(log logger.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithExpiryCheck sets the interval for background expired entry cleanup.
// A non-positive interval disables the sweep; expired entries are still
// reported absent and removed when next touched.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithShards sets the number of entry store shards. It is rounded up to a
// power of two.
func WithShards(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithSingleFlight makes concurrent GetOrAdd misses on the same key share one
// retriever call. Off by default: each missing caller runs its own retriever
// and the last completed Set wins.
func WithSingleFlight(enabled bool) Option {
	return func(c *config) { c.singleFlight = enabled }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed providers.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.queryTimeout = d
		}
	}
}

// WithPrefix sets the key prefix for namespacing keys in a shared backend.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithCloseClient makes Close on an I/O-backed provider also close the
// client it was given. By default the caller owns the client.
func WithCloseClient(enabled bool) Option {
	return func(c *config) { c.closeClient = enabled }
}

// WithCodec sets the codec used by encoding providers.
func WithCodec(cd codec.Codec) Option {
	return func(c *config) {
		if cd != nil {
			c.codec = cd
		}
	}
}

// Get retrieves a typed value from p. In-memory values are type asserted;
// Payload hits from encoding providers are decoded into T.
func Get[T any](ctx context.Context, p Provider, key string) (bool, T, error) {
	found, val, err := p.Get(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	typed, err := convert[T](val)
	if err != nil {
		var zero T
		return false, zero, err
	}
	return true, typed, nil
}

// GetOrAdd is the typed form of Provider.GetOrAdd.
func GetOrAdd[T any](ctx context.Context, p Provider, key string, ttl time.Duration, retriever func(ctx context.Context) (T, error)) (T, error) {
	val, err := p.GetOrAdd(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return retriever(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](val)
}

func convert[T any](val any) (T, error) {
	var zero T
	if val == nil {
		return zero, nil
	}
	if payload, ok := val.(Payload); ok {
		if _, raw := any(zero).(Payload); raw {
			return val.(T), nil
		}
		var result T
		if err := payload.Decode(&result); err != nil {
			return zero, err
		}
		return result, nil
	}
	if typed, ok := val.(T); ok {
		return typed, nil
	}
	return zero, errors.Newf("cache: cannot convert value of type %T to %T", val, zero)
}
