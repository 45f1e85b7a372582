package api

import (
	"encoding/json"
	"errors"
	"facilitywatch/internal/facility"
	"facilitywatch/internal/models"
	"facilitywatch/internal/ratelimit"
	"facilitywatch/internal/storage"
	"facilitywatch/internal/version"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

const maxRequestBodyBytes = 64 << 10

// Handlers contains HTTP handlers for the facilitywatch API
type Handlers struct {
	service   facility.ServiceInterface
	storage   storage.Storage
	limiters  map[string]ratelimit.Limiter
	startTime time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithStorage enables storage health checks in the health endpoint.
func WithStorage(s storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.storage = s
	}
}

// WithLimiters reports per-policy tracked entry counts in the health endpoint.
func WithLimiters(limiters map[string]ratelimit.Limiter) HandlerOption {
	return func(h *Handlers) {
		h.limiters = limiters
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(service facility.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service:   service,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SearchFacilities handles facility search requests
// GET /api/v1/facilities?query=&state=&limit=
func (h *Handlers) SearchFacilities(w http.ResponseWriter, r *http.Request) {
	req := &models.SearchFacilitiesRequest{
		Query: r.URL.Query().Get("query"),
		State: r.URL.Query().Get("state"),
	}

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil {
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	response, err := h.service.SearchFacilities(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetFacility handles single facility lookups
// GET /api/v1/facilities/{facility_id}
func (h *Handlers) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["facility_id"]

	response, err := h.service.GetFacility(r.Context(), facilityID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetAvailability handles availability lookups
// GET /api/v1/facilities/{facility_id}/availability?date=YYYY-MM-DD
func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	req := &models.AvailabilityRequest{
		FacilityID: mux.Vars(r)["facility_id"],
		Date:       r.URL.Query().Get("date"),
	}

	response, err := h.service.GetAvailability(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListFavorites returns the caller's favorites
// GET /api/v1/favorites
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.ListFavorites(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// AddFavorite bookmarks a facility for the caller
// PUT /api/v1/favorites/{facility_id}
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["facility_id"]

	response, err := h.service.AddFavorite(r.Context(), UserIDFromContext(r.Context()), facilityID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// RemoveFavorite deletes one of the caller's favorites
// DELETE /api/v1/favorites/{facility_id}
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	facilityID := mux.Vars(r)["facility_id"]

	if err := h.service.RemoveFavorite(r.Context(), UserIDFromContext(r.Context()), facilityID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.DeleteResponse{
		ID:      facilityID,
		Message: "Favorite removed",
	})
}

// ListAlerts returns the caller's alerts
// GET /api/v1/alerts
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.ListAlerts(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// CreateAlert registers an availability alert for the caller
// POST /api/v1/alerts
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAlertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	alert, err := h.service.CreateAlert(r.Context(), UserIDFromContext(r.Context()), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	slog.Info("Alert created",
		"alert_id", alert.ID,
		"facility_id", alert.FacilityID,
		"date", alert.Date)

	h.writeJSONResponse(w, http.StatusCreated, alert)
}

// DeleteAlert removes one of the caller's alerts
// DELETE /api/v1/alerts/{alert_id}
func (h *Handlers) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	if err := h.service.DeleteAlert(r.Context(), UserIDFromContext(r.Context()), alertID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, &models.DeleteResponse{
		ID:      alertID,
		Message: "Alert deleted",
	})
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version
	response.Uptime = time.Since(h.startTime).Round(time.Second).String()

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			response.Status = models.StatusDegraded
			response.AddComponent("storage", models.StatusUnhealthy, err.Error())
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	for name, limiter := range h.limiters {
		response.AddMetric("ratelimit_entries_"+name, limiter.Len())
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// handleServiceError maps service errors onto HTTP error responses
func (h *Handlers) handleServiceError(w http.ResponseWriter, err error) {
	var svcErr *facility.ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Request failed", "code", svcErr.Code, "error", err)
		}
		h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	slog.Error("Unexpected service error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing left to send
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}
