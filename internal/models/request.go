// Package models - API request types and input validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (trimmed strings, upper-case states)
// - Provide sensible defaults where appropriate
package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchFacilitiesRequest filters the provider's facility catalog.
type SearchFacilitiesRequest struct {
	Query string `json:"query"`
	State string `json:"state,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (r *SearchFacilitiesRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" && strings.TrimSpace(r.State) == "" {
		return errors.New("query or state is required")
	}
	if len(r.Query) > 200 {
		return errors.New("query must be at most 200 characters")
	}
	if r.State != "" && len(strings.TrimSpace(r.State)) != 2 {
		return fmt.Errorf("state must be a two-letter code: %s", r.State)
	}
	if r.Limit < 0 || r.Limit > MaxSearchLimit {
		return fmt.Errorf("limit must be between 0 and %d", MaxSearchLimit)
	}
	return nil
}

func (r *SearchFacilitiesRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	if r.Limit == 0 {
		r.Limit = DefaultSearchLimit
	}
}

// AvailabilityRequest asks for one facility's availability on one date.
type AvailabilityRequest struct {
	FacilityID string `json:"facility_id"`
	Date       string `json:"date"`
}

func (r *AvailabilityRequest) Validate() error {
	if strings.TrimSpace(r.FacilityID) == "" {
		return errors.New("facility_id is required")
	}
	if err := validateDate(r.Date); err != nil {
		return err
	}
	return nil
}

// CreateAlertRequest registers a new availability alert.
type CreateAlertRequest struct {
	FacilityID   string `json:"facility_id"`
	Date         string `json:"date"`
	MinAvailable int    `json:"min_available"`
	Channel      string `json:"channel"`
	Target       string `json:"target"`
}

func (r *CreateAlertRequest) Validate() error {
	if strings.TrimSpace(r.FacilityID) == "" {
		return errors.New("facility_id is required")
	}
	if err := validateDate(r.Date); err != nil {
		return err
	}
	if r.MinAvailable < 0 {
		return errors.New("min_available cannot be negative")
	}

	switch strings.ToLower(strings.TrimSpace(r.Channel)) {
	case ChannelPush:
		if strings.TrimSpace(r.Target) == "" {
			return errors.New("target device token is required for push alerts")
		}
	case ChannelEmail:
		if _, err := mail.ParseAddress(strings.TrimSpace(r.Target)); err != nil {
			return fmt.Errorf("invalid email target: %w", err)
		}
	default:
		return fmt.Errorf("unsupported channel: %s", r.Channel)
	}

	return nil
}

func (r *CreateAlertRequest) Normalize() {
	r.FacilityID = strings.TrimSpace(r.FacilityID)
	r.Channel = strings.ToLower(strings.TrimSpace(r.Channel))
	r.Target = strings.TrimSpace(r.Target)
	if r.MinAvailable == 0 {
		r.MinAvailable = 1
	}
}

func validateDate(date string) error {
	if date == "" {
		return errors.New("date is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("date must be formatted as YYYY-MM-DD: %s", date)
	}
	return nil
}
