package cache

import (
	"math"
	"math/rand"
	"time"
)

// MaxRandomSecondsLimit is the largest jitter bound whose duration fits in a
// time.Duration.
const MaxRandomSecondsLimit = math.MaxInt64 / int64(time.Second)

// expiryPolicy turns a relative TTL into an absolute expiration, adding up to
// maxRandomSeconds of jitter so keys written together do not expire together.
type expiryPolicy struct {
	maxRandomSeconds int
}

func (p expiryPolicy) jitter() time.Duration {
	if p.maxRandomSeconds <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(p.maxRandomSeconds)*int64(time.Second) + 1))
}

// ttl returns the effective relative lifetime for a write.
func (p expiryPolicy) ttl(key string, ttl time.Duration) (time.Duration, error) {
	if err := checkTTL(key, ttl); err != nil {
		return 0, err
	}
	j := p.jitter()
	if ttl > math.MaxInt64-j {
		// saturate instead of wrapping into the past
		return math.MaxInt64, nil
	}
	return ttl + j, nil
}

// expiresAt returns now + ttl + jitter.
func (p expiryPolicy) expiresAt(now time.Time, key string, ttl time.Duration) (time.Time, error) {
	d, err := p.ttl(key, ttl)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}
