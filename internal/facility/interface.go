package facility

import (
	"context"
	"facilitywatch/internal/models"
)

// ServiceInterface defines the interface for facility service operations
type ServiceInterface interface {
	// SearchFacilities looks up facilities by name/city and state
	SearchFacilities(ctx context.Context, req *models.SearchFacilitiesRequest) (*models.SearchFacilitiesResponse, error)

	// GetFacility returns one facility
	GetFacility(ctx context.Context, facilityID string) (*models.Facility, error)

	// GetAvailability returns a facility's availability for a date
	GetAvailability(ctx context.Context, req *models.AvailabilityRequest) (*models.Availability, error)

	// ListFavorites returns the user's favorite facilities
	ListFavorites(ctx context.Context, userID string) (*models.ListFavoritesResponse, error)

	// AddFavorite bookmarks a facility; adding an existing favorite returns it unchanged
	AddFavorite(ctx context.Context, userID, facilityID string) (*models.Favorite, error)

	// RemoveFavorite removes a bookmark
	RemoveFavorite(ctx context.Context, userID, facilityID string) error

	// ListAlerts returns the user's availability alerts
	ListAlerts(ctx context.Context, userID string) (*models.ListAlertsResponse, error)

	// CreateAlert registers an availability alert
	CreateAlert(ctx context.Context, userID string, req *models.CreateAlertRequest) (*models.Alert, error)

	// DeleteAlert removes one of the user's alerts
	DeleteAlert(ctx context.Context, userID, alertID string) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
