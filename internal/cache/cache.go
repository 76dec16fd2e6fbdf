// Package cache provides the key/value cache in front of the durable
// stores.
//
// Three independent families exist per user: access token, user
// profile, and the full characteristics bundle. Entries are derived,
// disposable state: losing one costs latency, never correctness, so
// cache failures are logged and swallowed rather than propagated.
//
// Consistency policy is read-through plus invalidate-on-write: readers
// populate on miss, writers delete the entry and leave repopulation to
// the next reader.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Family namespaces cache keys per data kind.
type Family string

const (
	// FamilyToken caches access tokens.
	FamilyToken Family = "auth"
	// FamilyProfile caches user profile snapshots.
	FamilyProfile Family = "user_profile"
	// FamilyBundle caches the full characteristics bundle per user.
	FamilyBundle Family = "characteristics"
)

// Key builds the namespaced cache key for a family and user.
func Key(family Family, userID string) string {
	return string(family) + ":" + userID
}

// Cache is the key/value store behind the layer. Implementations must
// treat Invalidate of an absent key as a no-op, not an error.
type Cache interface {
	// Get returns the entry and true, or nil and false on a miss.
	Get(ctx context.Context, family Family, userID string) ([]byte, bool, error)

	// Set stores a serialized snapshot under the family's key with the
	// given TTL. Overwriting a present entry is allowed.
	Set(ctx context.Context, family Family, userID string, value []byte, ttl time.Duration) error

	// Invalidate deletes the entry. Idempotent: absent keys are a no-op.
	Invalidate(ctx context.Context, family Family, userID string) error

	// Close releases the backend connection or stops the janitor.
	Close() error
}

// TTLs configures the per-family entry lifetime.
type TTLs struct {
	Token   time.Duration
	Profile time.Duration
	Bundle  time.Duration
}

// Layer wires a Cache with per-family TTLs and the read-through and
// invalidate-on-write policies.
//
// Layer is safe for concurrent use by multiple goroutines.
type Layer struct {
	cache  Cache
	ttls   TTLs
	logger *slog.Logger
}

// NewLayer creates the cache layer.
func NewLayer(c Cache, ttls TTLs, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{cache: c, ttls: ttls, logger: logger}
}

// ttl returns the configured TTL for a family.
func (l *Layer) ttl(family Family) time.Duration {
	switch family {
	case FamilyToken:
		return l.ttls.Token
	case FamilyProfile:
		return l.ttls.Profile
	default:
		return l.ttls.Bundle
	}
}

// GetOrLoad returns the cached entry for the family, loading from the
// system of record and repopulating on a miss. Cache backend errors are
// logged and treated as misses: the loader result is still returned.
func (l *Layer) GetOrLoad(ctx context.Context, family Family, userID string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	value, ok, err := l.cache.Get(ctx, family, userID)
	if err != nil {
		l.logger.Warn("cache get failed, falling through", "family", family, "error", err)
	} else if ok {
		return value, nil
	}

	value, err = load(ctx)
	if err != nil {
		return nil, err
	}

	if err := l.cache.Set(ctx, family, userID, value, l.ttl(family)); err != nil {
		l.logger.Warn("cache set failed", "family", family, "error", err)
	}
	return value, nil
}

// Invalidate deletes the family's entry for the user. Backend errors
// are logged, not returned: the entry expires by TTL regardless.
func (l *Layer) Invalidate(ctx context.Context, family Family, userID string) {
	if err := l.cache.Invalidate(ctx, family, userID); err != nil {
		l.logger.Warn("cache invalidate failed", "family", family, "user_id", userID, "error", err)
	}
}
