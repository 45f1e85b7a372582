package storage

import (
	"context"
	"facilitywatch/internal/models"
	"time"
)

// Storage defines the interface for persisting user-owned data: favorite
// facilities and availability alerts. Facility data itself belongs to the
// upstream provider and is never stored here.
type Storage interface {
	// Favorites returns a user's favorites, most recent first
	Favorites(ctx context.Context, userID string) ([]*models.Favorite, error)

	// SaveFavorite stores a new favorite, returning ErrAlreadyExists if the user already has it
	SaveFavorite(ctx context.Context, fav *models.Favorite) error

	// DeleteFavorite removes a favorite, returning ErrNotFound if it does not exist
	DeleteFavorite(ctx context.Context, userID, facilityID string) error

	// Alerts returns a user's alerts, oldest first
	Alerts(ctx context.Context, userID string) ([]*models.Alert, error)

	// AllAlerts returns every alert for periodic evaluation
	AllAlerts(ctx context.Context) ([]*models.Alert, error)

	// GetAlert retrieves an alert by its ID
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)

	// SaveAlert stores or updates an alert
	SaveAlert(ctx context.Context, alert *models.Alert) error

	// DeleteAlert removes an alert, returning ErrNotFound if it does not exist
	DeleteAlert(ctx context.Context, alertID string) error

	// Ping verifies the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, postgres, sqlite)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// Pool settings for database backends
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}
