package api

import (
	"encoding/json"
	"facilitywatch/internal/facility"
	"facilitywatch/internal/models"
	"facilitywatch/internal/provider"
	"facilitywatch/internal/ratelimit"
	"facilitywatch/internal/storage"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *mux.Router
	store  *storage.MemoryStorage
	read   *ratelimit.MemoryLimiter
	write  *ratelimit.MemoryLimiter
}

func newTestServer(t *testing.T, cfg *models.Config, readMax, writeMax int) *testServer {
	t.Helper()

	p, err := provider.NewStaticProvider(provider.Catalog{Facilities: []provider.CatalogFacility{
		{
			Facility: models.Facility{ID: "232447", Name: "Upper Pines", City: "Yosemite Valley", State: "CA"},
			Availability: map[string][]models.Slot{
				"2026-07-04": {{Label: "Site 001", Available: 1, Capacity: 6}},
			},
		},
	}})
	require.NoError(t, err)

	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	read, err := ratelimit.NewMemoryLimiter(ratelimit.Policy{Window: time.Minute, MaxRequests: readMax}, ratelimit.WithName("read"))
	require.NoError(t, err)
	write, err := ratelimit.NewMemoryLimiter(ratelimit.Policy{Window: time.Minute, MaxRequests: writeMax}, ratelimit.WithName("write"))
	require.NoError(t, err)
	t.Cleanup(func() {
		read.Close()
		write.Close()
	})

	svc := facility.NewService(p, store, 10)
	handlers := NewHandlers(svc, WithStorage(store))
	router := SetupRoutes(handlers, cfg, WithRateLimiters(read, write, true))

	return &testServer{router: router, store: store, read: read, write: write}
}

func (s *testServer) do(method, target, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.1.1.1:40000"
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestSetupRoutes_PublicEndpoints(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 100)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
	}{
		{"health", "/health", http.StatusOK},
		{"api health", "/api/v1/health", http.StatusOK},
		{"search", "/api/v1/facilities?query=pines", http.StatusOK},
		{"facility", "/api/v1/facilities/232447", http.StatusOK},
		{"unknown facility", "/api/v1/facilities/000", http.StatusNotFound},
		{"availability", "/api/v1/facilities/232447/availability?date=2026-07-04", http.StatusOK},
		{"unknown route", "/api/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(http.MethodGet, tt.target, "", "")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestSetupRoutes_UserEndpointsRequireIdentity(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 100)

	for _, target := range []string{"/api/v1/favorites", "/api/v1/alerts"} {
		rr := srv.do(http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}

	rr := srv.do(http.MethodPut, "/api/v1/favorites/232447", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSetupRoutes_FavoritesAndAlertsFlow(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 100)

	rr := srv.do(http.MethodPut, "/api/v1/favorites/232447", testUserID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(http.MethodGet, "/api/v1/favorites", testUserID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var favs models.ListFavoritesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&favs))
	assert.Equal(t, 1, favs.TotalCount)
	assert.Equal(t, "Upper Pines", favs.Favorites[0].FacilityName)

	rr = srv.do(http.MethodPost, "/api/v1/alerts", testUserID,
		`{"facility_id":"232447","date":"2099-07-04","channel":"email","target":"camper@example.com"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var alert models.Alert
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&alert))
	assert.Equal(t, 1, alert.MinAvailable)

	rr = srv.do(http.MethodDelete, "/api/v1/alerts/"+alert.ID, testUserID, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(http.MethodDelete, "/api/v1/favorites/232447", testUserID, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSetupRoutes_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 100)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/facilities/232447"},
		{http.MethodPost, "/api/v1/favorites"},
		{http.MethodGet, "/api/v1/alerts/abc"},
		{http.MethodPatch, "/api/v1/favorites/232447"},
		{http.MethodPut, "/api/v1/alerts"},
		{http.MethodDelete, "/api/v1/facilities/232447/availability"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := srv.do(tt.method, tt.path, testUserID, "")

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Equal(t, models.ErrorCodeInvalidRequest, decodeError(t, rr).Code)
		})
	}

	// Known methods on the same paths still resolve
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/facilities/232447", testUserID, "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodPost, "/api/v1/nowhere", testUserID, "").Code)
}

func TestSetupRoutes_Preflight(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	// Preflight is answered for any path under the API prefix only
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/facilities/232447/availability", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	req = httptest.NewRequest(http.MethodOptions, "/elsewhere", nil)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetupRoutes_ReadLimitIsPerRouteTemplate(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 2, 100)

	// Different facility IDs share the /facilities/{facility_id} bucket
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/facilities/232447", "", "").Code)
	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/api/v1/facilities/000", "", "").Code)

	rr := srv.do(http.MethodGet, "/api/v1/facilities/232447", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, models.ErrorCodeRateLimited, decodeError(t, rr).Code)

	// Search is a different route and still has capacity
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/facilities?query=pines", "", "").Code)

	// Health checks are never limited
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/health", "", "").Code)
}

func TestSetupRoutes_WriteLimitIsSeparateFromReads(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 100, 1)

	assert.Equal(t, http.StatusOK, srv.do(http.MethodPut, "/api/v1/favorites/232447", testUserID, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, srv.do(http.MethodPut, "/api/v1/favorites/232447", testUserID, "").Code)

	// Reads are unaffected by an exhausted write policy
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/favorites", testUserID, "").Code)
	assert.Equal(t, 1, srv.write.Len())
}

func TestSetupRoutes_ForwardedCallersAreLimitedSeparately(t *testing.T) {
	srv := newTestServer(t, models.NewDefaultConfig(), 1, 100)

	for _, ip := range []string{"203.0.113.7", "203.0.113.8"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities/232447", nil)
		req.RemoteAddr = "10.1.1.1:40000"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.2")
		rr := httptest.NewRecorder()
		srv.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, ip)
	}
	assert.Equal(t, 2, srv.read.Len())
}

func TestSetupRoutes_MinClientVersion(t *testing.T) {
	cfg := models.NewDefaultConfig()
	cfg.Security.MinClientVersion = "3.0.0"
	srv := newTestServer(t, cfg, 100, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities/232447", nil)
	req.Header.Set(HeaderClientVersion, "2.9.9")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUpgradeRequired, rr.Code)

	// Health stays reachable for outdated clients
	for _, path := range []string{"/health", "/api/v1/health"} {
		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(HeaderClientVersion, "2.9.9")
		rr = httptest.NewRecorder()
		srv.router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	// The gate runs before identity checks on caller-owned routes
	req = httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	req.Header.Set(HeaderClientVersion, "2.9.9")
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUpgradeRequired, rr.Code)
}

func TestSetupRoutes_WithoutLimiters(t *testing.T) {
	p, err := provider.NewStaticProvider(provider.Catalog{})
	require.NoError(t, err)
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	router := SetupRoutes(NewHandlers(facility.NewService(p, store, 10)), models.NewDefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities?state=CA", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}
