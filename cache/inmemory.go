package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agentuity/go-cache/logger"
	"golang.org/x/sync/singleflight"
)

// Config is the per-instance configuration of an in-memory provider.
type Config struct {
	// Name identifies the provider in a Registry. Empty means DefaultName.
	Name string
	// MaxRandomSeconds bounds the jitter added to every expiration. Zero
	// disables jitter.
	MaxRandomSeconds int
	// SizeLimit is an advisory capacity hint used to presize the store. It
	// does not evict.
	SizeLimit int
}

func (c Config) normalize() (Config, error) {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if err := checkMaxRandomSeconds(c.Name, c.MaxRandomSeconds); err != nil {
		return c, err
	}
	if c.SizeLimit < 0 {
		return c, validationErrorf("cache: size limit for %q must not be negative, got %d", c.Name, c.SizeLimit)
	}
	return c, nil
}

// InMemory is an in-process Provider. Values are stored as-is: no copying,
// hashing or encoding, so mutations to stored pointers are visible through
// the cache.
type InMemory struct {
	ctx       context.Context
	cancel    context.CancelFunc
	name      string
	policy    expiryPolicy
	store     *store
	group     singleflight.Group
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
	logger    logger.Logger
}

var _ Provider = (*InMemory)(nil)

// NewInMemory returns a new in-memory provider. The background sweep stops
// when parent is cancelled or Close is called.
func NewInMemory(parent context.Context, c Config, opts ...Option) (*InMemory, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, err
	}
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	m := &InMemory{
		ctx:    ctx,
		cancel: cancel,
		name:   c.Name,
		policy: expiryPolicy{maxRandomSeconds: c.MaxRandomSeconds},
		store:  newStore(cfg.shards, c.SizeLimit),
		cfg:    cfg,
		logger: cfg.logger.WithPrefix("[" + c.Name + "]"),
	}
	if cfg.expiryCheck > 0 {
		m.waitGroup.Add(1)
		go m.run()
	}
	return m, nil
}

func (c *InMemory) Name() string { return c.name }

func (c *InMemory) MaxRandomSeconds() int { return c.policy.maxRandomSeconds }

func (c *InMemory) Get(_ context.Context, key string) (bool, any, error) {
	if err := checkKey(key); err != nil {
		return false, nil, err
	}
	e, ok := c.store.read(key, c.cfg.now())
	if !ok {
		return false, nil, nil
	}
	return true, e.object, nil
}

func (c *InMemory) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	now := c.cfg.now()
	expires, err := c.policy.expiresAt(now, key, ttl)
	if err != nil {
		return err
	}
	c.store.write(key, entry{object: val, expires: expires})
	return nil
}

func (c *InMemory) TrySet(_ context.Context, key string, val any, ttl time.Duration) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	now := c.cfg.now()
	expires, err := c.policy.expiresAt(now, key, ttl)
	if err != nil {
		return false, err
	}
	return c.store.writeIfAbsent(key, entry{object: val, expires: expires}, now), nil
}

func (c *InMemory) Exists(_ context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	return c.store.containsLive(key, c.cfg.now()), nil
}

func (c *InMemory) Remove(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.store.remove(key)
	return nil
}

func (c *InMemory) GetOrAdd(ctx context.Context, key string, ttl time.Duration, retriever Retriever) (any, error) {
	if err := checkWrite(key, ttl); err != nil {
		return nil, err
	}
	if retriever == nil {
		return nil, validationErrorf("cache: retriever for key %q must not be nil", key)
	}
	if e, ok := c.store.read(key, c.cfg.now()); ok {
		return e.object, nil
	}
	if !c.cfg.singleFlight {
		return c.populate(ctx, key, ttl, retriever)
	}
	// the flight outlives any single caller; each caller waits on its own ctx
	flight := c.group.DoChan(key, func() (any, error) {
		// a previous flight may have stored the value while we were queued
		if e, ok := c.store.read(key, c.cfg.now()); ok {
			return e.object, nil
		}
		return c.populate(context.WithoutCancel(ctx), key, ttl, retriever)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.Val, nil
	}
}

// populate runs retriever with no lock held and stores its result. Nothing is
// stored when the retriever fails or ctx is done by the time it returns.
func (c *InMemory) populate(ctx context.Context, key string, ttl time.Duration, retriever Retriever) (any, error) {
	val, err := retriever(ctx)
	if err != nil {
		c.logger.Debug("retriever for key %s failed: %s", key, err)
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

// Len returns the number of stored entries, including expired entries that
// have not been swept yet.
func (c *InMemory) Len() int {
	return c.store.len()
}

// Flush removes every entry.
func (c *InMemory) Flush(_ context.Context) {
	c.store.clear()
}

func (c *InMemory) Close(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *InMemory) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if removed := c.store.sweep(c.cfg.now()); removed > 0 {
				c.logger.Debug("swept %d expired entries", removed)
			}
		}
	}
}
