// Package models - Facility, availability, favorite and alert entities.
//
// Facilities and availability come from the upstream data provider and are
// never persisted by this service. Favorites and alerts are owned by a user
// (an opaque UUID supplied by the client) and live in storage.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for availability lookups.
const DateLayout = "2006-01-02"

// Alert delivery channels
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Facility describes a bookable place (campground, court, shelter, ...).
type Facility struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Type        string  `json:"type" yaml:"type"`
	City        string  `json:"city,omitempty" yaml:"city"`
	State       string  `json:"state,omitempty" yaml:"state"`
	Latitude    float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude   float64 `json:"longitude,omitempty" yaml:"longitude"`
	Description string  `json:"description,omitempty" yaml:"description"`
}

// Slot is one reservable unit group within a day (a loop, a court, a time block).
type Slot struct {
	Label     string `json:"label" yaml:"label"`
	Available int    `json:"available" yaml:"available"`
	Capacity  int    `json:"capacity" yaml:"capacity"`
}

// Availability is the provider's view of a facility for one date.
type Availability struct {
	FacilityID     string    `json:"facility_id"`
	Date           string    `json:"date"`
	Slots          []Slot    `json:"slots"`
	TotalAvailable int       `json:"total_available"`
	FetchedAt      time.Time `json:"fetched_at"`
	Stale          bool      `json:"stale,omitempty"` // Served from cache after an upstream failure
}

// Recount recomputes TotalAvailable from the slots.
func (a *Availability) Recount() {
	total := 0
	for _, s := range a.Slots {
		if s.Available > 0 {
			total += s.Available
		}
	}
	a.TotalAvailable = total
}

// Favorite is a facility bookmarked by a user.
type Favorite struct {
	UserID       string    `json:"user_id"`
	FacilityID   string    `json:"facility_id"`
	FacilityName string    `json:"facility_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Alert asks to be notified when a facility has at least MinAvailable units
// free on Date.
type Alert struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	FacilityID     string     `json:"facility_id"`
	Date           string     `json:"date"`
	MinAvailable   int        `json:"min_available"`
	Channel        string     `json:"channel"`
	Target         string     `json:"target"`
	CreatedAt      time.Time  `json:"created_at"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

// NewAlert creates an alert with a fresh ID from a validated request.
func NewAlert(userID string, req *CreateAlertRequest) *Alert {
	return &Alert{
		ID:           uuid.NewString(),
		UserID:       userID,
		FacilityID:   req.FacilityID,
		Date:         req.Date,
		MinAvailable: req.MinAvailable,
		Channel:      req.Channel,
		Target:       req.Target,
		CreatedAt:    time.Now().UTC(),
	}
}

// Expired reports whether the alert's date is before the given day.
func (a *Alert) Expired(now time.Time) bool {
	return a.Date < now.Format(DateLayout)
}

// DueForNotification reports whether enough time has passed since the last
// notification.
func (a *Alert) DueForNotification(now time.Time, cooldown time.Duration) bool {
	if a.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*a.LastNotifiedAt) >= cooldown
}
