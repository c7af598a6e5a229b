package cache

import (
	"context"
	"time"
)

type compositeCache struct {
	name   string
	caches []Provider
}

var _ Provider = (*compositeCache)(nil)

// NewComposite returns a Provider that chains providers into tiers, fastest
// first. Get returns the first hit. Set and Remove apply to every tier.
// TrySet is decided by the last tier, which is treated as authoritative, and
// the winning value is then copied into the earlier tiers.
func NewComposite(name string, caches ...Provider) (Provider, error) {
	if name == "" {
		return nil, validationErrorf("cache: composite provider name must not be empty")
	}
	if len(caches) == 0 {
		return nil, validationErrorf("cache: composite provider %q needs at least one tier", name)
	}
	return &compositeCache{name: name, caches: caches}, nil
}

func (c *compositeCache) Name() string { return c.name }

// MaxRandomSeconds reports the largest jitter bound among the tiers.
func (c *compositeCache) MaxRandomSeconds() int {
	var highest int
	for _, cache := range c.caches {
		if n := cache.MaxRandomSeconds(); n > highest {
			highest = n
		}
	}
	return highest
}

func (c *compositeCache) Get(ctx context.Context, key string) (bool, any, error) {
	for _, cache := range c.caches {
		found, val, err := cache.Get(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (c *compositeCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Set(ctx, key, val, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) TrySet(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	last := len(c.caches) - 1
	ok, err := c.caches[last].TrySet(ctx, key, val, ttl)
	if err != nil || !ok {
		return false, err
	}
	for _, cache := range c.caches[:last] {
		if err := cache.Set(ctx, key, val, ttl); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (c *compositeCache) Exists(ctx context.Context, key string) (bool, error) {
	for _, cache := range c.caches {
		found, err := cache.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (c *compositeCache) Remove(ctx context.Context, key string) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) GetOrAdd(ctx context.Context, key string, ttl time.Duration, retriever Retriever) (any, error) {
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

func (c *compositeCache) Close(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
