package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Cache backed by a Redis server. Key TTLs are
// enforced server-side; DEL is atomic, so Invalidate racing a reader
// leaves either the stale or the absent state, never a torn one.
type Redis struct {
	client *redis.Client
}

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Get returns the entry and true, or nil and false on a miss.
func (r *Redis) Get(ctx context.Context, family Family, userID string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, Key(family, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores a value with the given TTL.
func (r *Redis) Set(ctx context.Context, family Family, userID string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, Key(family, userID), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate deletes the entry. DEL of an absent key is a no-op.
func (r *Redis) Invalidate(ctx context.Context, family Family, userID string) error {
	if err := r.client.Del(ctx, Key(family, userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
