package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-cache/cache"
	"github.com/agentuity/go-cache/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
providers:
  - type: inmemory
  - name: mName
    max_random_seconds: 600
    size_limit: 50
    expiry_check: 1d12h
    single_flight: true
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, logger.LevelDebug, f.Level())
	require.Len(t, f.Providers, 2)

	p := f.Providers[1]
	assert.Equal(t, "mName", p.Name)
	assert.Equal(t, TypeInMemory, p.Type)
	assert.Equal(t, 600, p.MaxRandomSeconds)
	assert.Equal(t, 50, p.SizeLimit)
	assert.Equal(t, Duration(36*time.Hour), p.ExpiryCheck)
	assert.True(t, p.SingleFlight)
	assert.Equal(t, 0, f.Providers[0].MaxRandomSeconds)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad duration", "providers:\n  - name: a\n    expiry_check: soon\n"},
		{"duplicate", "providers:\n  - name: a\n  - name: a\n"},
		{"duplicate default", "providers:\n  - type: inmemory\n  - name: DefaultInMemory\n"},
		{"negative jitter", "providers:\n  - name: a\n    max_random_seconds: -1\n"},
		{"jitter beyond duration range", "providers:\n  - name: a\n    max_random_seconds: 10000000000\n"},
		{"unknown type", "providers:\n  - name: a\n    type: memcached\n"},
		{"redis without url", "providers:\n  - name: a\n    type: redis\n"},
		{"redis without name", "providers:\n  - type: redis\n    url: redis://localhost\n"},
		{"unknown tier", "providers:\n  - name: a\n  - name: c\n    type: composite\n    tiers: [a, b]\n"},
		{"not yaml", "providers: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			assert.Nil(t, f)
			assert.Error(t, err)
		})
	}
	_, err := Parse([]byte("providers:\n  - name: a\n  - name: a\n"))
	assert.True(t, errors.Is(err, cache.ErrValidation))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Providers, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	doc := `
providers:
  - name: local
    max_random_seconds: 0
  - name: shared
    type: redis
    url: redis://` + mr.Addr() + `/0
    prefix: app
    serializer: msgpack
    query_timeout: 2s
  - name: tiered
    type: composite
    tiers: [local, shared]
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	log := logger.NewTestLogger()
	registry, err := Build(ctx, f, log, nil)
	require.NoError(t, err)
	defer registry.Close(ctx)

	assert.Equal(t, []string{"local", "shared", "tiered"}, registry.Names())
	_, err = registry.Default()
	assert.True(t, errors.Is(err, cache.ErrNotFound))

	tiered, err := registry.Resolve("tiered")
	require.NoError(t, err)
	require.NoError(t, tiered.Set(ctx, "k", "v", time.Minute))
	assert.True(t, mr.Exists("app:k"))

	shared, err := registry.Resolve("shared")
	require.NoError(t, err)
	ok, v, err := cache.Get[string](ctx, shared, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuildUnknownSerializer(t *testing.T) {
	f, err := Parse([]byte("providers:\n  - name: r\n    type: redis\n    url: redis://localhost:6379\n    serializer: json\n"))
	require.NoError(t, err)
	_, err = Build(context.Background(), f, logger.NewTestLogger(), nil)
	assert.Error(t, err)
}
