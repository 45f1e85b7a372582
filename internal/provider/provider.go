// Package provider fetches facility and availability data from the upstream
// reservation system. Every call made here spends part of the upstream's
// request budget, which is why callers wrap providers in CachedProvider.
package provider

import (
	"context"
	"errors"
	"facilitywatch/internal/models"
	"fmt"
)

var (
	// ErrFacilityNotFound is returned when the upstream does not know the facility.
	ErrFacilityNotFound = errors.New("facility not found")

	// ErrUpstream wraps transport failures and unexpected upstream responses.
	ErrUpstream = errors.New("upstream unavailable")
)

// Provider is a source of facility data.
type Provider interface {
	// Search returns facilities matching the query and/or state, at most limit results.
	Search(ctx context.Context, query, state string, limit int) ([]models.Facility, error)

	// Facility returns one facility by ID.
	Facility(ctx context.Context, id string) (*models.Facility, error)

	// Availability returns the facility's availability on date (YYYY-MM-DD).
	Availability(ctx context.Context, id, date string) (*models.Availability, error)
}

// New builds the provider selected by the configuration. It does not add caching.
func New(cfg models.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case models.ProviderTypeStatic:
		p, err := LoadStaticProvider(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		return p, nil
	case models.ProviderTypeHTTP:
		return NewHTTPProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}
