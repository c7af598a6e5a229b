package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetAsync(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{Name: secondProviderName})
	key := uuid.NewString()

	_, err := Await(ctx, SetAsync(ctx, c, key, "value", 30*time.Second))
	require.NoError(t, err)

	res, err := Await(ctx, GetAsync(ctx, c, key))
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "value", res.Value)

	res, err = Await(ctx, GetAsync(ctx, c, "missing"))
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestAsyncValidationError(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{})

	r := <-SetAsync(ctx, c, "k", "v", 0)
	assert.False(t, r.IsOk())
	assert.True(t, errors.Is(r.Err, ErrValidation))

	ok, err := Await(ctx, TrySetAsync(ctx, c, "k", "v", -time.Second))
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTrySetAsyncParallel(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{})

	const workers = 20
	chans := make([]<-chan Result[bool], workers)
	for i := range chans {
		chans[i] = TrySetAsync(ctx, c, "Parallel", i, time.Second)
	}
	var wins int
	for _, ch := range chans {
		ok, err := Await(ctx, ch)
		assert.NoError(t, err)
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestGetOrAddAsync(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{})

	val, err := Await(ctx, GetOrAddAsync(ctx, c, "k", time.Minute, func(context.Context) (any, error) {
		return []int{1, 2, 3}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, val)

	expectedErr := fmt.Errorf("boom")
	_, err = Await(ctx, GetOrAddAsync(ctx, c, "other", time.Minute, func(context.Context) (any, error) {
		return nil, expectedErr
	}))
	assert.Same(t, expectedErr, err)
	ok, _ := c.Exists(ctx, "other")
	assert.False(t, ok)
}

func TestAsyncCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestCache(t, Config{})

	r := <-SetAsync(ctx, c, "k", "v", time.Minute)
	assert.ErrorIs(t, r.Err, context.Canceled)
	ok, err := c.Exists(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAwaitCancelledWhileRetrieving(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestCache(t, Config{})

	var started sync.WaitGroup
	started.Add(1)
	release := make(chan struct{})
	ch := GetOrAddAsync(ctx, c, "slow", time.Minute, func(context.Context) (any, error) {
		started.Done()
		<-release
		return "late", nil
	})
	started.Wait()
	cancel()

	_, err := Await(ctx, ch)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	r := <-ch
	assert.ErrorIs(t, r.Err, context.Canceled)
	ok, err := c.Exists(context.Background(), "slow")
	assert.NoError(t, err)
	assert.False(t, ok)

	// the stalled retriever did not block other keys
	assert.NoError(t, c.Set(context.Background(), "fast", 1, time.Minute))
}
