package provider

import (
	"context"
	"encoding/json"
	"errors"
	"facilitywatch/internal/cache"
	"facilitywatch/internal/models"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const stalePrefix = "stale:"

// CachedProvider is a read-through cache in front of another provider. Every
// successful upstream answer is stored twice: once for ttl and once for
// staleTTL. When the upstream fails (anything other than not-found) the
// long-lived copy is served instead, and availability is marked Stale.
type CachedProvider struct {
	next     Provider
	cache    cache.Cache
	ttl      time.Duration
	staleTTL time.Duration
}

// NewCachedProvider wraps next. A staleTTL no longer than ttl disables the
// stale fallback.
func NewCachedProvider(next Provider, c cache.Cache, ttl, staleTTL time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl, staleTTL: staleTTL}
}

func (p *CachedProvider) Search(ctx context.Context, query, state string, limit int) ([]models.Facility, error) {
	key := fmt.Sprintf("search:%s|%s|%d", strings.ToLower(query), strings.ToUpper(state), limit)

	var facilities []models.Facility
	_, err := p.fetch(ctx, key, &facilities, func() (any, error) {
		return p.next.Search(ctx, query, state, limit)
	})
	if err != nil {
		return nil, err
	}
	return facilities, nil
}

func (p *CachedProvider) Facility(ctx context.Context, id string) (*models.Facility, error) {
	var facility models.Facility
	_, err := p.fetch(ctx, "facility:"+id, &facility, func() (any, error) {
		return p.next.Facility(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &facility, nil
}

func (p *CachedProvider) Availability(ctx context.Context, id, date string) (*models.Availability, error) {
	var avail models.Availability
	stale, err := p.fetch(ctx, "availability:"+id+":"+date, &avail, func() (any, error) {
		return p.next.Availability(ctx, id, date)
	})
	if err != nil {
		return nil, err
	}
	avail.Stale = stale
	return &avail, nil
}

// fetch fills out from the fresh cache, the upstream, or the stale cache, in
// that order. It reports whether the stale copy was used.
func (p *CachedProvider) fetch(ctx context.Context, key string, out any, load func() (any, error)) (bool, error) {
	if p.read(ctx, key, out) {
		return false, nil
	}

	value, err := load()
	if err == nil {
		data, mErr := json.Marshal(value)
		if mErr != nil {
			return false, fmt.Errorf("failed to encode %s: %w", key, mErr)
		}
		p.write(ctx, key, data, p.ttl)
		if p.staleTTL > p.ttl {
			p.write(ctx, stalePrefix+key, data, p.staleTTL)
		}
		return false, json.Unmarshal(data, out)
	}

	if errors.Is(err, ErrFacilityNotFound) {
		return false, err
	}
	if p.staleTTL > p.ttl && p.read(ctx, stalePrefix+key, out) {
		slog.Warn("Serving stale provider data", "key", key, "error", err)
		return true, nil
	}
	return false, err
}

// read treats cache failures as misses; the cache is an optimization.
func (p *CachedProvider) read(ctx context.Context, key string, out any) bool {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		_ = p.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (p *CachedProvider) write(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := p.cache.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}
