package cache

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTiers(t *testing.T) (*InMemory, *InMemory, Provider) {
	t.Helper()
	l1 := newTestCache(t, Config{Name: "l1"})
	l2 := newTestCache(t, Config{Name: "l2", MaxRandomSeconds: 3})
	c, err := NewComposite("tiered", l1, l2)
	require.NoError(t, err)
	return l1, l2, c
}

func TestCompositeInvalid(t *testing.T) {
	_, err := NewComposite("empty")
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = NewComposite("")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCompositeGetOrder(t *testing.T) {
	ctx := context.Background()
	l1, l2, c := newTestTiers(t)
	assert.Equal(t, "tiered", c.Name())
	assert.Equal(t, 3, c.MaxRandomSeconds())

	l1.Set(ctx, "key", "from-l1", time.Minute)
	l2.Set(ctx, "key", "from-l2", time.Minute)

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-l1", val)

	l2.Set(ctx, "only", "from-l2", time.Minute)
	found, val, err = c.Get(ctx, "only")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-l2", val)
}

func TestCompositeSetAndRemoveAll(t *testing.T) {
	ctx := context.Background()
	l1, l2, c := newTestTiers(t)

	assert.NoError(t, c.Set(ctx, "key", "shared", time.Minute))
	for _, tier := range []Provider{l1, l2} {
		found, val, err := tier.Get(ctx, "key")
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "shared", val)
	}

	assert.NoError(t, c.Remove(ctx, "key"))
	assert.NoError(t, c.Remove(ctx, "key"))
	ok, err := c.Exists(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCompositeTrySet(t *testing.T) {
	ctx := context.Background()
	l1, l2, c := newTestTiers(t)

	// the last tier decides
	l2.Set(ctx, "taken", "existing", time.Minute)
	ok, err := c.TrySet(ctx, "taken", "new", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok)
	found, _, _ := l1.Get(ctx, "taken")
	assert.False(t, found)

	ok, err = c.TrySet(ctx, "fresh", "new", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
	found, val, _ := l1.Get(ctx, "fresh")
	assert.True(t, found)
	assert.Equal(t, "new", val)
}

func TestCompositeGetOrAdd(t *testing.T) {
	ctx := context.Background()
	l1, _, c := newTestTiers(t)

	calls := 0
	retrieve := func(context.Context) (any, error) {
		calls++
		return map[string][]int{"ss": {1}}, nil
	}
	val, err := c.GetOrAdd(ctx, "k", time.Minute, retrieve)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"ss": {1}}, val)
	_, err = c.GetOrAdd(ctx, "k", time.Minute, retrieve)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	ok, err := l1.Exists(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestCompositeWithRedisTier(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	l1 := newTestCache(t, Config{Name: "l1"})
	l2 := newTestRedisProvider(t, client)
	c, err := NewComposite("tiered", l1, l2)
	require.NoError(t, err)

	assert.NoError(t, l2.Set(ctx, "n", 7, time.Minute))
	ok, n, err := Get[int](ctx, c, "n")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	// bytes decode with the codec of the tier that served them
	assert.NoError(t, l2.Set(ctx, "remote", []byte("from l2"), time.Minute))
	ok, data, err := Get[[]byte](ctx, c, "remote")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("from l2"), data)

	assert.NoError(t, l1.Set(ctx, "local", []byte("from l1"), time.Minute))
	ok, data, err = Get[[]byte](ctx, c, "local")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("from l1"), data)

	assert.NoError(t, c.Close(ctx))
}
