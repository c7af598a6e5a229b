// Package cache provides named, expiring key-value cache providers behind one
// Provider interface, a Registry to look them up by name, and type-safe
// generic helpers.
//
// # Providers
//
//   - [NewInMemory]: the in-process engine. Entries live in a sharded map;
//     each shard has its own lock and keys are spread with xxhash, so writers
//     of unrelated keys never wait on each other. Values are stored as-is:
//     the engine never copies, hashes, walks or encodes them, so arbitrarily
//     deep or self-referential values are safe and mutations to stored
//     pointers are visible through the cache. Expired entries are reported
//     absent immediately and physically removed when next touched or by a
//     background sweep ([WithExpiryCheck]).
//
//   - [NewRedis]: an out-of-process adapter over go-redis. Values are encoded
//     with a codec from the codec package (msgpack by default), [Provider.TrySet]
//     is SET NX and expiry uses native Redis TTLs. Hits come back as a
//     [Payload]; [Get] and [GetOrAdd] decode it into the requested type.
//
//   - [NewComposite]: chains providers into tiers, for example an in-memory
//     L1 in front of a Redis L2.
//
// # Expiration and jitter
//
// Every write computes its expiry as now + ttl + jitter, where jitter is
// uniform in [0, MaxRandomSeconds] seconds. Keys written together therefore
// do not all expire together. MaxRandomSeconds of zero (the default) makes
// expiry exactly now + ttl. A ttl of zero or less is rejected with
// [ErrValidation]; there is no "never expires" through this API. A ttl so
// large that adding jitter would overflow is capped at the largest
// time.Duration, and MaxRandomSeconds above [MaxRandomSecondsLimit] is
// rejected.
//
// # Compute if absent
//
// [Provider.GetOrAdd] returns the live value for a key or runs the retriever
// on a miss and stores its result:
//
//	user, err := cache.GetOrAdd(ctx, p, "user:123", time.Minute,
//	    func(ctx context.Context) (User, error) {
//	        return queries.GetUser(ctx, 123)
//	    },
//	)
//
// The retriever runs with no lock held. A retriever error is returned as-is
// and nothing is stored. Concurrent misses each run their own retriever and
// the last completed write wins, unless the provider was built with
// [WithSingleFlight], in which case concurrent misses share one call. A
// caller that gives up on a shared call gets its own context error; the
// others still receive the value, which is stored.
//
// [Provider.TrySet] is the stampede-control primitive: among concurrent
// callers on a key without a live entry exactly one succeeds.
//
// # Registry
//
// A [Registry] is built while the process is configured:
//
//	registry := cache.NewRegistry(ctx, log)
//	registry.Register(cache.Config{})                                      // DefaultInMemory
//	registry.Register(cache.Config{Name: "sessions", MaxRandomSeconds: 30})
//	sessions, err := registry.Resolve("sessions")
//
// Resolving a name that was never registered returns [ErrNotFound]; there is
// no implicit default provider.
//
// # Asynchronous calls
//
// [GetAsync], [SetAsync], [TrySetAsync] and [GetOrAddAsync] run the
// corresponding operation on its own goroutine and deliver one [Result] on a
// buffered channel. [Await] waits for it or for the context, whichever comes
// first. A context that is done before the write happens results in the
// context's error and no entry.
package cache
