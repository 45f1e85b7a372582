// Package cache stores upstream provider responses so repeated reads do not
// spend the provider's request budget.
package cache

import (
	"context"
	"facilitywatch/internal/models"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	Close() error
}

// New builds the cache backend selected by the configuration.
func New(cfg models.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case models.CacheTypeMemory:
		return NewMemoryCache(cfg.Memory.MaxSize, cfg.Memory.CleanupInterval), nil
	case models.CacheTypeRedis:
		c, err := NewRedisCache(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
