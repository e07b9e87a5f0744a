package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brieferhq/briefer/config"
)

// Redis backs the cache interface with a shared redis instance so repeated
// queries are deduplicated across processes.
type Redis struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedis connects to redis using the storage config and verifies the
// connection with a ping.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) (*Redis, error) {
	addr := cfg.Addr()
	if addr == "" {
		return nil, fmt.Errorf("redis not configured (storage.redis.host/port)")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &Redis{client: client, logger: logger}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Printf("redis get %q failed: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Printf("redis set %q failed: %v", key, err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
