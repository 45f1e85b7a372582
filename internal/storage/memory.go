package storage

import (
	"context"
	"facilitywatch/internal/models"
	"fmt"
	"sort"
	"sync"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu        sync.RWMutex
	favorites map[string]map[string]*models.Favorite // userID -> facilityID -> favorite
	alerts    map[string]*models.Alert               // keyed by ID
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		favorites: make(map[string]map[string]*models.Favorite),
		alerts:    make(map[string]*models.Alert),
	}, nil
}

// Favorites returns a user's favorites, most recent first
func (m *MemoryStorage) Favorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	favs := make([]*models.Favorite, 0, len(m.favorites[userID]))
	for _, fav := range m.favorites[userID] {
		// Return a copy to prevent external modification
		favCopy := *fav
		favs = append(favs, &favCopy)
	}

	sort.Slice(favs, func(i, j int) bool {
		if favs[i].CreatedAt.Equal(favs[j].CreatedAt) {
			return favs[i].FacilityID < favs[j].FacilityID
		}
		return favs[j].CreatedAt.Before(favs[i].CreatedAt)
	})

	return favs, nil
}

// SaveFavorite stores a new favorite
func (m *MemoryStorage) SaveFavorite(ctx context.Context, fav *models.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userFavs, ok := m.favorites[fav.UserID]
	if !ok {
		userFavs = make(map[string]*models.Favorite)
		m.favorites[fav.UserID] = userFavs
	}
	if _, exists := userFavs[fav.FacilityID]; exists {
		return fmt.Errorf("favorite %s: %w", fav.FacilityID, ErrAlreadyExists)
	}

	favCopy := *fav
	userFavs[fav.FacilityID] = &favCopy
	return nil
}

// DeleteFavorite removes a favorite
func (m *MemoryStorage) DeleteFavorite(ctx context.Context, userID, facilityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userFavs := m.favorites[userID]
	if _, exists := userFavs[facilityID]; !exists {
		return fmt.Errorf("favorite %s: %w", facilityID, ErrNotFound)
	}

	delete(userFavs, facilityID)
	if len(userFavs) == 0 {
		delete(m.favorites, userID)
	}
	return nil
}

// Alerts returns a user's alerts, oldest first
func (m *MemoryStorage) Alerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]*models.Alert, 0)
	for _, alert := range m.alerts {
		if alert.UserID == userID {
			alerts = append(alerts, copyAlert(alert))
		}
	}
	sortAlerts(alerts)
	return alerts, nil
}

// AllAlerts returns every stored alert
func (m *MemoryStorage) AllAlerts(ctx context.Context) ([]*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]*models.Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		alerts = append(alerts, copyAlert(alert))
	}
	sortAlerts(alerts)
	return alerts, nil
}

// GetAlert retrieves an alert by its ID
func (m *MemoryStorage) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, exists := m.alerts[alertID]
	if !exists {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	return copyAlert(alert), nil
}

// SaveAlert stores or updates an alert
func (m *MemoryStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[alert.ID] = copyAlert(alert)
	return nil
}

// DeleteAlert removes an alert by its ID
func (m *MemoryStorage) DeleteAlert(ctx context.Context, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[alertID]; !exists {
		return fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	delete(m.alerts, alertID)
	return nil
}

// Ping always succeeds for in-memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}

func copyAlert(a *models.Alert) *models.Alert {
	c := *a
	if a.LastNotifiedAt != nil {
		t := *a.LastNotifiedAt
		c.LastNotifiedAt = &t
	}
	return &c
}

func sortAlerts(alerts []*models.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].ID < alerts[j].ID
		}
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})
}
