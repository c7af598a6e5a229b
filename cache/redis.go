package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed provider.
type RedisConfig struct {
	Name             string
	MaxRandomSeconds int
}

type redisCache struct {
	client *redis.Client
	name   string
	policy expiryPolicy
	cfg    config
	once   sync.Once
}

var _ Provider = (*redisCache)(nil)

// NewRedis returns a Provider backed by Redis. Values are encoded with the
// configured codec (msgpack unless WithCodec is given) and hits return a
// Payload; use the generic Get and GetOrAdd helpers to decode them.
// The caller owns the redis.Client lifecycle unless WithCloseClient is given.
func NewRedis(client *redis.Client, c RedisConfig, opts ...Option) (Provider, error) {
	if c.Name == "" {
		return nil, validationErrorf("cache: redis provider name must not be empty")
	}
	if err := checkMaxRandomSeconds(c.Name, c.MaxRandomSeconds); err != nil {
		return nil, err
	}
	return &redisCache{
		client: client,
		name:   c.Name,
		policy: expiryPolicy{maxRandomSeconds: c.MaxRandomSeconds},
		cfg:    applyOptions(opts),
	}, nil
}

func (c *redisCache) Name() string { return c.name }

func (c *redisCache) MaxRandomSeconds() int { return c.policy.maxRandomSeconds }

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisCache) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return c.cfg.prefix + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string) (bool, any, error) {
	if err := checkKey(key); err != nil {
		return false, nil, err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	data, err := c.client.Get(qctx, c.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrapf(err, "cache: redis get %s", key)
	}
	return true, Payload{Data: data, Codec: c.cfg.codec}, nil
}

func (c *redisCache) encode(key string, val any, ttl time.Duration) ([]byte, time.Duration, error) {
	if err := checkKey(key); err != nil {
		return nil, 0, err
	}
	d, err := c.policy.ttl(key, ttl)
	if err != nil {
		return nil, 0, err
	}
	data, err := c.cfg.codec.Marshal(val)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cache: encoding %s with %s", key, c.cfg.codec.Name())
	}
	return data, d, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	data, d, err := c.encode(key, val, ttl)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.client.Set(qctx, c.prefixKey(key), data, d).Err(); err != nil {
		return errors.Wrapf(err, "cache: redis set %s", key)
	}
	return nil
}

func (c *redisCache) TrySet(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	data, d, err := c.encode(key, val, ttl)
	if err != nil {
		return false, err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	ok, err := c.client.SetNX(qctx, c.prefixKey(key), data, d).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis setnx %s", key)
	}
	return ok, nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Exists(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "cache: redis exists %s", key)
	}
	return n > 0, nil
}

func (c *redisCache) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.client.Del(qctx, c.prefixKey(key)).Err(); err != nil {
		return errors.Wrapf(err, "cache: redis del %s", key)
	}
	return nil
}

// GetOrAdd returns a Payload on a hit and the retriever's native value
// on a miss. The generic GetOrAdd helper decodes either into one type.
func (c *redisCache) GetOrAdd(ctx context.Context, key string, ttl time.Duration, retriever Retriever) (any, error) {
	if err := checkWrite(key, ttl); err != nil {
		return nil, err
	}
	if retriever == nil {
		return nil, validationErrorf("cache: retriever for key %q must not be nil", key)
	}
	found, val, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return val, nil
	}
	val, err = retriever(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, val, ttl); err != nil {
		return nil, err
	}
	return val, nil
}

// Close closes the client only when the provider owns it.
func (c *redisCache) Close(_ context.Context) error {
	var err error
	c.once.Do(func() {
		if c.cfg.closeClient {
			err = c.client.Close()
		}
	})
	return err
}
