// Package cache provides the redis-backed cache used for live judge status,
// submit rate limiting and hot-row caching.
package cache

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Cache is the subset of redis operations the core depends on.
// Keeping it narrow lets tests swap in miniredis or hand-written fakes.
type Cache interface {
	// Get retrieves the value for the given key; returns "" on miss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL (0 = no expiry).
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// Expire sets a timeout on a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Incr increments the integer value of a key by 1.
	Incr(ctx context.Context, key string) (int64, error)

	// HSet sets fields in the hash stored at key.
	HSet(ctx context.Context, key string, fields map[string]interface{}) error

	// HGetAll returns all fields and values of the hash stored at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Publish sends a message to a channel (live status streaming).
	Publish(ctx context.Context, channel string, payload interface{}) error

	// Subscribe returns a receive channel for messages on the given channel
	// and a cancel function releasing the subscription.
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}

// JitterTTL subtracts up to 10% random jitter from a TTL so that hot keys
// written together do not expire together.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}
