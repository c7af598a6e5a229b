package cache

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
)

// Registry maps provider names to providers. Providers are registered while
// the process is being configured; Resolve is lock-free and may be called
// from any goroutine at any time.
type Registry struct {
	ctx       context.Context
	logger    logger.Logger
	mutex     sync.Mutex
	providers atomic.Pointer[map[string]Provider]
}

// NewRegistry returns an empty registry. In-memory providers created through
// Register are bound to ctx.
func NewRegistry(ctx context.Context, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewConsoleLogger(logger.LevelNone)
	}
	r := &Registry{ctx: ctx, logger: log}
	empty := map[string]Provider{}
	r.providers.Store(&empty)
	return r
}

// Register builds an in-memory provider for c and adds it to the registry.
func (r *Registry) Register(c Config, opts ...Option) (*InMemory, error) {
	c, err := c.normalize()
	if err != nil {
		return nil, err
	}
	if _, ok := r.lookup(c.Name); ok {
		return nil, duplicateError(c.Name)
	}
	opts = append([]Option{WithLogger(r.logger)}, opts...)
	m, err := NewInMemory(r.ctx, c, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Add(m); err != nil {
		m.Close(r.ctx)
		return nil, err
	}
	return m, nil
}

// Add registers an already constructed provider under its Name.
func (r *Registry) Add(p Provider) error {
	name := p.Name()
	if name == "" {
		return validationErrorf("cache: provider name must not be empty")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	current := *r.providers.Load()
	if _, ok := current[name]; ok {
		return duplicateError(name)
	}
	next := make(map[string]Provider, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[name] = p
	r.providers.Store(&next)
	r.logger.Info("registered cache provider %s (max random seconds %d)", name, p.MaxRandomSeconds())
	return nil
}

// Resolve returns the provider registered under name. An empty name resolves
// DefaultName, which must have been registered like any other.
func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		name = DefaultName
	}
	p, ok := r.lookup(name)
	if !ok {
		return nil, errors.Mark(errors.Newf("cache: no provider registered as %q", name), ErrNotFound)
	}
	return p, nil
}

// Default resolves the provider registered under DefaultName.
func (r *Registry) Default() (Provider, error) {
	return r.Resolve(DefaultName)
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	current := *r.providers.Load()
	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every registered provider and returns the first error.
func (r *Registry) Close(ctx context.Context) error {
	var firstErr error
	for _, name := range r.Names() {
		p, _ := r.lookup(name)
		if err := p.Close(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "cache: closing %s", name)
		}
	}
	return firstErr
}

func (r *Registry) lookup(name string) (Provider, bool) {
	p, ok := (*r.providers.Load())[name]
	return p, ok
}

func duplicateError(name string) error {
	return validationErrorf("cache: a provider named %q is already registered", name)
}
