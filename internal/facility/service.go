// Package facility implements the facility lookup, favorites and alerts
// business logic on top of a data provider and user storage.
package facility

import (
	"context"
	"errors"
	"facilitywatch/internal/models"
	"facilitywatch/internal/provider"
	"facilitywatch/internal/storage"
	"fmt"
	"time"
)

// Service handles facility lookups and user-owned favorites and alerts
type Service struct {
	provider         provider.Provider
	storage          storage.Storage
	maxAlertsPerUser int
}

// NewService creates a new facility service. A non-positive maxAlertsPerUser
// means no limit.
func NewService(p provider.Provider, s storage.Storage, maxAlertsPerUser int) *Service {
	return &Service{
		provider:         p,
		storage:          s,
		maxAlertsPerUser: maxAlertsPerUser,
	}
}

// SearchFacilities validates the request and queries the provider
func (s *Service) SearchFacilities(ctx context.Context, req *models.SearchFacilitiesRequest) (*models.SearchFacilitiesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError("invalid search request", err)
	}
	req.Normalize()

	facilities, err := s.provider.Search(ctx, req.Query, req.State, req.Limit)
	if err != nil {
		return nil, NewUpstreamError(err)
	}

	return &models.SearchFacilitiesResponse{
		Facilities: facilities,
		TotalCount: len(facilities),
	}, nil
}

// GetFacility returns one facility from the provider
func (s *Service) GetFacility(ctx context.Context, facilityID string) (*models.Facility, error) {
	if facilityID == "" {
		return nil, NewInvalidRequestError("facility_id is required", nil)
	}

	f, err := s.provider.Facility(ctx, facilityID)
	if err != nil {
		return nil, providerError(facilityID, err)
	}
	return f, nil
}

// GetAvailability returns a facility's availability for one date
func (s *Service) GetAvailability(ctx context.Context, req *models.AvailabilityRequest) (*models.Availability, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError("invalid availability request", err)
	}

	avail, err := s.provider.Availability(ctx, req.FacilityID, req.Date)
	if err != nil {
		return nil, providerError(req.FacilityID, err)
	}
	return avail, nil
}

// ListFavorites returns the user's favorites
func (s *Service) ListFavorites(ctx context.Context, userID string) (*models.ListFavoritesResponse, error) {
	favs, err := s.storage.Favorites(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load favorites", err)
	}

	resp := &models.ListFavoritesResponse{
		Favorites:  make([]models.Favorite, 0, len(favs)),
		TotalCount: len(favs),
	}
	for _, fav := range favs {
		resp.Favorites = append(resp.Favorites, *fav)
	}
	return resp, nil
}

// AddFavorite verifies the facility exists and bookmarks it. Adding a
// facility that is already a favorite returns the existing record.
func (s *Service) AddFavorite(ctx context.Context, userID, facilityID string) (*models.Favorite, error) {
	f, err := s.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	fav := &models.Favorite{
		UserID:       userID,
		FacilityID:   f.ID,
		FacilityName: f.Name,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.storage.SaveFavorite(ctx, fav)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return s.existingFavorite(ctx, userID, facilityID)
	}
	if err != nil {
		return nil, NewInternalError("failed to save favorite", err)
	}
	return fav, nil
}

func (s *Service) existingFavorite(ctx context.Context, userID, facilityID string) (*models.Favorite, error) {
	favs, err := s.storage.Favorites(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load favorites", err)
	}
	for _, fav := range favs {
		if fav.FacilityID == facilityID {
			return fav, nil
		}
	}
	// Removed concurrently between the insert and the lookup.
	return nil, NewConflictError(fmt.Sprintf("favorite '%s' changed concurrently", facilityID))
}

// RemoveFavorite deletes a bookmark
func (s *Service) RemoveFavorite(ctx context.Context, userID, facilityID string) error {
	err := s.storage.DeleteFavorite(ctx, userID, facilityID)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError(fmt.Sprintf("favorite '%s' not found", facilityID))
	}
	if err != nil {
		return NewInternalError("failed to delete favorite", err)
	}
	return nil
}

// ListAlerts returns the user's alerts
func (s *Service) ListAlerts(ctx context.Context, userID string) (*models.ListAlertsResponse, error) {
	alerts, err := s.storage.Alerts(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to load alerts", err)
	}

	resp := &models.ListAlertsResponse{
		Alerts:     make([]models.Alert, 0, len(alerts)),
		TotalCount: len(alerts),
	}
	for _, a := range alerts {
		resp.Alerts = append(resp.Alerts, *a)
	}
	return resp, nil
}

// CreateAlert validates the request, checks the facility exists and the
// user's alert quota, then stores the alert
func (s *Service) CreateAlert(ctx context.Context, userID string, req *models.CreateAlertRequest) (*models.Alert, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError("invalid alert request", err)
	}
	req.Normalize()

	if _, err := s.GetFacility(ctx, req.FacilityID); err != nil {
		return nil, err
	}

	if s.maxAlertsPerUser > 0 {
		existing, err := s.storage.Alerts(ctx, userID)
		if err != nil {
			return nil, NewInternalError("failed to load alerts", err)
		}
		if len(existing) >= s.maxAlertsPerUser {
			return nil, NewConflictError(fmt.Sprintf("alert limit of %d reached", s.maxAlertsPerUser))
		}
	}

	alert := models.NewAlert(userID, req)
	if err := s.storage.SaveAlert(ctx, alert); err != nil {
		return nil, NewInternalError("failed to save alert", err)
	}
	return alert, nil
}

// DeleteAlert removes an alert owned by the user. Alerts belonging to other
// users are reported as not found.
func (s *Service) DeleteAlert(ctx context.Context, userID, alertID string) error {
	notFound := NewNotFoundError(fmt.Sprintf("alert '%s' not found", alertID))

	alert, err := s.storage.GetAlert(ctx, alertID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	if err != nil {
		return NewInternalError("failed to load alert", err)
	}
	if alert.UserID != userID {
		return notFound
	}

	err = s.storage.DeleteAlert(ctx, alertID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound
	}
	if err != nil {
		return NewInternalError("failed to delete alert", err)
	}
	return nil
}
