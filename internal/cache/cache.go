package cache

import (
	"context"
	"time"
)

// Cache is a narrow TTL get/set interface used to memoize tool responses.
// Values are opaque bytes and immutable once cached.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
