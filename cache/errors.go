package cache

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrValidation marks errors caused by invalid caller input: an empty key,
	// a non-positive TTL, a negative jitter bound or a duplicate provider name.
	ErrValidation = errors.New("cache: validation failed")
	// ErrNotFound is returned when resolving a provider name that was never
	// registered.
	ErrNotFound = errors.New("cache: provider not found")
)

func validationErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func checkKey(key string) error {
	if key == "" {
		return validationErrorf("cache: key must not be empty")
	}
	return nil
}

func checkTTL(key string, ttl time.Duration) error {
	if ttl <= 0 {
		return validationErrorf("cache: ttl for key %q must be positive, got %s", key, ttl)
	}
	return nil
}

func checkWrite(key string, ttl time.Duration) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return checkTTL(key, ttl)
}

func checkMaxRandomSeconds(name string, n int) error {
	if n < 0 {
		return validationErrorf("cache: max random seconds for %q must not be negative, got %d", name, n)
	}
	if int64(n) > MaxRandomSecondsLimit {
		return validationErrorf("cache: max random seconds for %q must not exceed %d, got %d", name, MaxRandomSecondsLimit, n)
	}
	return nil
}
