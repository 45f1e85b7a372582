// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes alongside human-readable messages
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

type SearchFacilitiesResponse struct {
	Facilities []Facility `json:"facilities"`
	TotalCount int        `json:"total_count"`
}

type ListFavoritesResponse struct {
	Favorites  []Favorite `json:"favorites"`
	TotalCount int        `json:"total_count"`
}

type ListAlertsResponse struct {
	Alerts     []Alert `json:"alerts"`
	TotalCount int     `json:"total_count"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: Input format/constraint violations
// - Not found errors: Resource doesn't exist
// - Throttling errors: Rate limit exceeded (429, see Retry-After)
// - Upstream errors: The facility data provider is unavailable
// - Internal errors: Server-side issues
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound            = "NOT_FOUND"             // 404: Resource doesn't exist
	ErrorCodeFacilityNotFound    = "FACILITY_NOT_FOUND"    // 404: Facility unknown to the provider
	ErrorCodeBadRequest          = "BAD_REQUEST"           // 400: Invalid request format
	ErrorCodeInvalidRequest      = "INVALID_REQUEST"       // 400: Invalid request data
	ErrorCodeValidation          = "VALIDATION_ERROR"      // 422: Input validation failed
	ErrorCodeInternalError       = "INTERNAL_ERROR"        // 500: Server-side error
	ErrorCodeUnauthorized        = "UNAUTHORIZED"          // 401: Caller identity required
	ErrorCodeConflict            = "CONFLICT"              // 409: Resource conflict
	ErrorCodeRateLimited         = "RATE_LIMIT_EXCEEDED"   // 429: Too many requests
	ErrorCodeUpgradeRequired     = "UPGRADE_REQUIRED"      // 426: Client version too old
	ErrorCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"  // 502: Facility data provider failed
	ErrorCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"   // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
