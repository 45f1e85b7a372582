package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"facilitywatch/internal/facility"
	"facilitywatch/internal/models"
	"facilitywatch/internal/ratelimit"
	"facilitywatch/internal/storage"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "6f1c2a7e-3b1d-4c55-9a8e-2f0d4b7c1e90"

// pingStorage wraps memory storage with a controllable Ping result.
type pingStorage struct {
	*storage.MemoryStorage
	pingErr error
}

func (p *pingStorage) Ping(_ context.Context) error { return p.pingErr }

// MockFacilityService implements facility.ServiceInterface for testing
type MockFacilityService struct {
	mock.Mock
}

func (m *MockFacilityService) SearchFacilities(ctx context.Context, req *models.SearchFacilitiesRequest) (*models.SearchFacilitiesResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SearchFacilitiesResponse), args.Error(1)
}

func (m *MockFacilityService) GetFacility(ctx context.Context, facilityID string) (*models.Facility, error) {
	args := m.Called(ctx, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}

func (m *MockFacilityService) GetAvailability(ctx context.Context, req *models.AvailabilityRequest) (*models.Availability, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Availability), args.Error(1)
}

func (m *MockFacilityService) ListFavorites(ctx context.Context, userID string) (*models.ListFavoritesResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListFavoritesResponse), args.Error(1)
}

func (m *MockFacilityService) AddFavorite(ctx context.Context, userID, facilityID string) (*models.Favorite, error) {
	args := m.Called(ctx, userID, facilityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Favorite), args.Error(1)
}

func (m *MockFacilityService) RemoveFavorite(ctx context.Context, userID, facilityID string) error {
	return m.Called(ctx, userID, facilityID).Error(0)
}

func (m *MockFacilityService) ListAlerts(ctx context.Context, userID string) (*models.ListAlertsResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListAlertsResponse), args.Error(1)
}

func (m *MockFacilityService) CreateAlert(ctx context.Context, userID string, req *models.CreateAlertRequest) (*models.Alert, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockFacilityService) DeleteAlert(ctx context.Context, userID, alertID string) error {
	return m.Called(ctx, userID, alertID).Error(0)
}

// serve routes a single request through a router holding one handler, with
// the caller identity already attached when userID is set.
func serve(method, pattern, target, userID string, body []byte, h http.HandlerFunc) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.HandleFunc(pattern, h).Methods(method)

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), userIDKey, userID))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestNewHandlers(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	assert.NotNil(t, handlers)
	assert.Equal(t, mockService, handlers.service)
	assert.Nil(t, handlers.storage)
	assert.Nil(t, handlers.limiters)
}

func TestNewHandlers_WithOptions(t *testing.T) {
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)
	limiter, err := ratelimit.NewMemoryLimiter(ratelimit.Policy{Window: time.Minute, MaxRequests: 5})
	require.NoError(t, err)
	t.Cleanup(limiter.Close)

	handlers := NewHandlers(&MockFacilityService{},
		WithStorage(store),
		WithLimiters(map[string]ratelimit.Limiter{"read": limiter}))

	assert.Equal(t, store, handlers.storage)
	assert.Len(t, handlers.limiters, 1)
}

func TestHandlers_SearchFacilities(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	expected := &models.SearchFacilitiesResponse{
		Facilities: []models.Facility{{ID: "232447", Name: "Upper Pines", State: "CA"}},
		TotalCount: 1,
	}
	mockService.On("SearchFacilities", mock.Anything, &models.SearchFacilitiesRequest{
		Query: "pines", State: "ca", Limit: 5,
	}).Return(expected, nil)

	rr := serve("GET", "/api/v1/facilities", "/api/v1/facilities?query=pines&state=ca&limit=5", "", nil, handlers.SearchFacilities)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp models.SearchFacilitiesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, "Upper Pines", resp.Facilities[0].Name)
	mockService.AssertExpectations(t)
}

func TestHandlers_SearchFacilities_InvalidLimit(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	rr := serve("GET", "/api/v1/facilities", "/api/v1/facilities?query=pines&limit=ten", "", nil, handlers.SearchFacilities)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.ErrorCodeBadRequest, decodeError(t, rr).Code)
	mockService.AssertNotCalled(t, "SearchFacilities", mock.Anything, mock.Anything)
}

func TestHandlers_SearchFacilities_ValidationError(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	mockService.On("SearchFacilities", mock.Anything, mock.Anything).
		Return(nil, facility.NewValidationError("query or state is required", nil))

	rr := serve("GET", "/api/v1/facilities", "/api/v1/facilities", "", nil, handlers.SearchFacilities)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, models.ErrorCodeValidation, resp.Code)
	assert.Equal(t, "query or state is required", resp.Message)
}

func TestHandlers_GetFacility(t *testing.T) {
	tests := []struct {
		name         string
		serviceErr   error
		expectedCode int
		errorCode    string
	}{
		{"found", nil, http.StatusOK, ""},
		{"not found", facility.NewFacilityNotFoundError("999"), http.StatusNotFound, models.ErrorCodeFacilityNotFound},
		{"upstream failure", facility.NewUpstreamError(errors.New("timeout")), http.StatusBadGateway, models.ErrorCodeUpstreamUnavailable},
		{"unexpected error", errors.New("boom"), http.StatusInternalServerError, models.ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockFacilityService{}
			handlers := NewHandlers(mockService)

			if tt.serviceErr != nil {
				mockService.On("GetFacility", mock.Anything, "999").Return(nil, tt.serviceErr)
			} else {
				mockService.On("GetFacility", mock.Anything, "999").Return(&models.Facility{ID: "999", Name: "Lodgepole"}, nil)
			}

			rr := serve("GET", "/api/v1/facilities/{facility_id}", "/api/v1/facilities/999", "", nil, handlers.GetFacility)

			assert.Equal(t, tt.expectedCode, rr.Code)
			if tt.errorCode != "" {
				assert.Equal(t, tt.errorCode, decodeError(t, rr).Code)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandlers_GetAvailability(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	avail := &models.Availability{
		FacilityID:     "232447",
		Date:           "2026-07-04",
		Slots:          []models.Slot{{Label: "Site 001", Available: 2, Capacity: 6}},
		TotalAvailable: 2,
	}
	mockService.On("GetAvailability", mock.Anything, &models.AvailabilityRequest{
		FacilityID: "232447", Date: "2026-07-04",
	}).Return(avail, nil)

	rr := serve("GET", "/api/v1/facilities/{facility_id}/availability",
		"/api/v1/facilities/232447/availability?date=2026-07-04", "", nil, handlers.GetAvailability)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp models.Availability
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 2, resp.TotalAvailable)
	assert.False(t, resp.Stale)
	mockService.AssertExpectations(t)
}

func TestHandlers_ListFavorites_UsesCallerIdentity(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	mockService.On("ListFavorites", mock.Anything, testUserID).Return(&models.ListFavoritesResponse{
		Favorites:  []models.Favorite{{UserID: testUserID, FacilityID: "232447"}},
		TotalCount: 1,
	}, nil)

	rr := serve("GET", "/api/v1/favorites", "/api/v1/favorites", testUserID, nil, handlers.ListFavorites)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}

func TestHandlers_AddFavorite(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	fav := &models.Favorite{UserID: testUserID, FacilityID: "232447", FacilityName: "Upper Pines", CreatedAt: time.Now().UTC()}
	mockService.On("AddFavorite", mock.Anything, testUserID, "232447").Return(fav, nil)

	rr := serve("PUT", "/api/v1/favorites/{facility_id}", "/api/v1/favorites/232447", testUserID, nil, handlers.AddFavorite)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp models.Favorite
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Upper Pines", resp.FacilityName)
}

func TestHandlers_RemoveFavorite(t *testing.T) {
	t.Run("removed", func(t *testing.T) {
		mockService := &MockFacilityService{}
		handlers := NewHandlers(mockService)
		mockService.On("RemoveFavorite", mock.Anything, testUserID, "232447").Return(nil)

		rr := serve("DELETE", "/api/v1/favorites/{facility_id}", "/api/v1/favorites/232447", testUserID, nil, handlers.RemoveFavorite)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp models.DeleteResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "232447", resp.ID)
	})

	t.Run("not a favorite", func(t *testing.T) {
		mockService := &MockFacilityService{}
		handlers := NewHandlers(mockService)
		mockService.On("RemoveFavorite", mock.Anything, testUserID, "232447").
			Return(facility.NewNotFoundError("favorite not found"))

		rr := serve("DELETE", "/api/v1/favorites/{facility_id}", "/api/v1/favorites/232447", testUserID, nil, handlers.RemoveFavorite)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, models.ErrorCodeNotFound, decodeError(t, rr).Code)
	})
}

func TestHandlers_ListAlerts(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)
	mockService.On("ListAlerts", mock.Anything, testUserID).Return(&models.ListAlertsResponse{Alerts: []models.Alert{}}, nil)

	rr := serve("GET", "/api/v1/alerts", "/api/v1/alerts", testUserID, nil, handlers.ListAlerts)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}

func TestHandlers_CreateAlert(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	req := models.CreateAlertRequest{
		FacilityID:   "232447",
		Date:         "2026-07-04",
		MinAvailable: 2,
		Channel:      models.ChannelEmail,
		Target:       "camper@example.com",
	}
	alert := models.NewAlert(testUserID, &req)
	mockService.On("CreateAlert", mock.Anything, testUserID, &req).Return(alert, nil)

	body, err := json.Marshal(req)
	require.NoError(t, err)

	rr := serve("POST", "/api/v1/alerts", "/api/v1/alerts", testUserID, body, handlers.CreateAlert)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp models.Alert
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, alert.ID, resp.ID)
	assert.Equal(t, testUserID, resp.UserID)
	mockService.AssertExpectations(t)
}

func TestHandlers_CreateAlert_InvalidJSON(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)

	rr := serve("POST", "/api/v1/alerts", "/api/v1/alerts", testUserID, []byte("{not json"), handlers.CreateAlert)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.ErrorCodeBadRequest, decodeError(t, rr).Code)
	mockService.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlers_CreateAlert_QuotaExceeded(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)
	mockService.On("CreateAlert", mock.Anything, testUserID, mock.Anything).
		Return(nil, facility.NewConflictError("alert limit of 25 reached"))

	rr := serve("POST", "/api/v1/alerts", "/api/v1/alerts", testUserID,
		[]byte(`{"facility_id":"232447","date":"2026-07-04","channel":"push","target":"tok"}`), handlers.CreateAlert)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, models.ErrorCodeConflict, decodeError(t, rr).Code)
}

func TestHandlers_DeleteAlert(t *testing.T) {
	mockService := &MockFacilityService{}
	handlers := NewHandlers(mockService)
	mockService.On("DeleteAlert", mock.Anything, testUserID, "a-1").Return(nil)

	rr := serve("DELETE", "/api/v1/alerts/{alert_id}", "/api/v1/alerts/a-1", testUserID, nil, handlers.DeleteAlert)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp models.DeleteResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "a-1", resp.ID)
	assert.Equal(t, "Alert deleted", resp.Message)
}

func TestHandlers_HealthCheck(t *testing.T) {
	mem, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	limiter, err := ratelimit.NewMemoryLimiter(ratelimit.Policy{Window: time.Minute, MaxRequests: 5})
	require.NoError(t, err)
	t.Cleanup(limiter.Close)
	limiter.Allow("GET /x 10.0.0.1")

	tests := []struct {
		name           string
		pingErr        error
		expectedStatus string
		storageStatus  string
	}{
		{"storage healthy", nil, models.StatusHealthy, models.StatusHealthy},
		{"storage unreachable", errors.New("connection refused"), models.StatusDegraded, models.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHandlers(&MockFacilityService{},
				WithStorage(&pingStorage{MemoryStorage: mem, pingErr: tt.pingErr}),
				WithLimiters(map[string]ratelimit.Limiter{"read": limiter}))

			rr := serve("GET", "/health", "/health", "", nil, handlers.HealthCheck)

			assert.Equal(t, http.StatusOK, rr.Code)
			var resp models.HealthCheckResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.expectedStatus, resp.Status)
			assert.Equal(t, tt.storageStatus, resp.Components["storage"].Status)
			assert.Equal(t, models.StatusHealthy, resp.Components["api"].Status)
			assert.EqualValues(t, 1, resp.Metrics["ratelimit_entries_read"])
			assert.NotEmpty(t, resp.Uptime)
		})
	}
}
