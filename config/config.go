// Package config loads cache provider definitions from YAML and builds a
// cache.Registry from them.
package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/codec"
	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	TypeInMemory  = "inmemory"
	TypeRedis     = "redis"
	TypeComposite = "composite"
)

// Duration is a time.Duration that unmarshals from strings such as "90s",
// "15m" or "1d12h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := str2duration.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "config: invalid duration %q at line %d", s, node.Line)
	}
	*d = Duration(v)
	return nil
}

// Provider describes one named provider.
type Provider struct {
	Name             string   `yaml:"name"`
	Type             string   `yaml:"type"`
	MaxRandomSeconds int      `yaml:"max_random_seconds"`
	SizeLimit        int      `yaml:"size_limit"`
	ExpiryCheck      Duration `yaml:"expiry_check"`
	Shards           int      `yaml:"shards"`
	SingleFlight     bool     `yaml:"single_flight"`

	// redis
	URL          string   `yaml:"url"`
	Prefix       string   `yaml:"prefix"`
	Serializer   string   `yaml:"serializer"`
	QueryTimeout Duration `yaml:"query_timeout"`

	// composite: names of previously declared providers, fastest first
	Tiers []string `yaml:"tiers"`
}

// File is the top-level configuration document.
type File struct {
	LogLevel  string     `yaml:"log_level"`
	Providers []Provider `yaml:"providers"`
}

// Level returns the configured log level, or the level from the environment
// when none is set.
func (f *File) Level() logger.LogLevel {
	if f.LogLevel == "" {
		return logger.GetLevelFromEnv()
	}
	return logger.ParseLevel(f.LogLevel, logger.LevelInfo)
}

// Parse decodes and validates a configuration document.
func Parse(buf []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, errors.Wrap(err, "config: invalid yaml")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	return Parse(buf)
}

// Validate checks the document without building anything. An empty name on
// an in-memory provider is allowed and means cache.DefaultName.
func (f *File) Validate() error {
	seen := map[string]bool{}
	for i := range f.Providers {
		p := &f.Providers[i]
		if p.Type == "" {
			p.Type = TypeInMemory
		}
		p.Type = strings.ToLower(p.Type)
		name := p.Name
		if name == "" && p.Type == TypeInMemory {
			name = cache.DefaultName
		}
		if name == "" {
			return errors.Mark(errors.Newf("config: provider %d of type %s has no name", i, p.Type), cache.ErrValidation)
		}
		if seen[name] {
			return errors.Mark(errors.Newf("config: provider %q is declared twice", name), cache.ErrValidation)
		}
		if p.MaxRandomSeconds < 0 {
			return errors.Mark(errors.Newf("config: provider %q has negative max_random_seconds", name), cache.ErrValidation)
		}
		if int64(p.MaxRandomSeconds) > cache.MaxRandomSecondsLimit {
			return errors.Mark(errors.Newf("config: provider %q has max_random_seconds above %d", name, cache.MaxRandomSecondsLimit), cache.ErrValidation)
		}
		switch p.Type {
		case TypeInMemory:
		case TypeRedis:
			if p.URL == "" {
				return errors.Mark(errors.Newf("config: redis provider %q needs a url", name), cache.ErrValidation)
			}
		case TypeComposite:
			if len(p.Tiers) == 0 {
				return errors.Mark(errors.Newf("config: composite provider %q needs tiers", name), cache.ErrValidation)
			}
			for _, tier := range p.Tiers {
				if !seen[tier] {
					return errors.Mark(errors.Newf("config: composite provider %q references unknown tier %q", name, tier), cache.ErrValidation)
				}
			}
		default:
			return errors.Mark(errors.Newf("config: provider %q has unknown type %q", name, p.Type), cache.ErrValidation)
		}
		seen[name] = true
	}
	return nil
}

// Build constructs every provider in f eagerly and registers it. Redis
// clients are created from each provider's url; codecs are looked up in
// codecs (codec.Default() when nil). On error, providers built so far are
// closed.
func Build(ctx context.Context, f *File, log logger.Logger, codecs *codec.Registry) (*cache.Registry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if codecs == nil {
		codecs = codec.Default()
	}
	registry := cache.NewRegistry(ctx, log)
	for _, p := range f.Providers {
		if err := build(registry, p, log, codecs); err != nil {
			registry.Close(ctx)
			return nil, err
		}
	}
	return registry, nil
}

func build(registry *cache.Registry, p Provider, log logger.Logger, codecs *codec.Registry) error {
	switch p.Type {
	case TypeInMemory:
		opts := []cache.Option{cache.WithSingleFlight(p.SingleFlight), cache.WithShards(p.Shards)}
		if p.ExpiryCheck > 0 {
			opts = append(opts, cache.WithExpiryCheck(time.Duration(p.ExpiryCheck)))
		}
		_, err := registry.Register(cache.Config{
			Name:             p.Name,
			MaxRandomSeconds: p.MaxRandomSeconds,
			SizeLimit:        p.SizeLimit,
		}, opts...)
		return err
	case TypeRedis:
		serializer := p.Serializer
		if serializer == "" {
			serializer = codec.MsgPackName
		}
		cd, err := codecs.Lookup(serializer)
		if err != nil {
			return errors.Wrapf(err, "config: provider %q", p.Name)
		}
		opts, err := redis.ParseURL(p.URL)
		if err != nil {
			return errors.Wrapf(err, "config: provider %q has an invalid url", p.Name)
		}
		provider, err := cache.NewRedis(redis.NewClient(opts), cache.RedisConfig{
			Name:             p.Name,
			MaxRandomSeconds: p.MaxRandomSeconds,
		},
			cache.WithCodec(cd),
			cache.WithPrefix(p.Prefix),
			cache.WithQueryTimeout(time.Duration(p.QueryTimeout)),
			cache.WithLogger(log),
			cache.WithCloseClient(true),
		)
		if err != nil {
			return err
		}
		return registry.Add(provider)
	case TypeComposite:
		tiers := make([]cache.Provider, 0, len(p.Tiers))
		for _, name := range p.Tiers {
			tier, err := registry.Resolve(name)
			if err != nil {
				return err
			}
			tiers = append(tiers, tier)
		}
		provider, err := cache.NewComposite(p.Name, tiers...)
		if err != nil {
			return err
		}
		return registry.Add(provider)
	}
	return nil
}
