package cache

import (
	"context"
	"time"
)

// Result is the single message delivered by an async call: the operation's
// return value in Ok, or its error in Err.
type Result[T any] struct {
	Ok  T
	Err error
}

// IsOk reports whether the operation succeeded.
func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// Lookup is the outcome of a Get. Found distinguishes a stored nil from a miss.
type Lookup struct {
	Found bool
	Value any
}

// async runs fn on its own goroutine and delivers exactly one Result on the
// returned channel. fn is not started if ctx is already done.
func async[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- Result[T]{Err: err}
			return
		}
		val, err := fn(ctx)
		ch <- Result[T]{Ok: val, Err: err}
	}()
	return ch
}

// GetAsync is the asynchronous form of Provider.Get.
func GetAsync(ctx context.Context, p Provider, key string) <-chan Result[Lookup] {
	return async(ctx, func(ctx context.Context) (Lookup, error) {
		found, val, err := p.Get(ctx, key)
		return Lookup{Found: found, Value: val}, err
	})
}

// SetAsync is the asynchronous form of Provider.Set.
func SetAsync(ctx context.Context, p Provider, key string, val any, ttl time.Duration) <-chan Result[struct{}] {
	return async(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Set(ctx, key, val, ttl)
	})
}

// TrySetAsync is the asynchronous form of Provider.TrySet.
func TrySetAsync(ctx context.Context, p Provider, key string, val any, ttl time.Duration) <-chan Result[bool] {
	return async(ctx, func(ctx context.Context) (bool, error) {
		return p.TrySet(ctx, key, val, ttl)
	})
}

// GetOrAddAsync is the asynchronous form of Provider.GetOrAdd.
func GetOrAddAsync(ctx context.Context, p Provider, key string, ttl time.Duration, retriever Retriever) <-chan Result[any] {
	return async(ctx, func(ctx context.Context) (any, error) {
		return p.GetOrAdd(ctx, key, ttl, retriever)
	})
}

// Await waits for the result of an asynchronous call or for ctx to be done,
// whichever comes first.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Ok, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
