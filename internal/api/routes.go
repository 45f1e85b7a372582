package api

import (
	"facilitywatch/internal/models"
	"facilitywatch/internal/ratelimit"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const apiPrefix = "/api/v1"

type routeSettings struct {
	middleware        []mux.MiddlewareFunc
	readLimiter       ratelimit.Limiter
	writeLimiter      ratelimit.Limiter
	trustForwardedFor bool
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeSettings)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(s *routeSettings) {
		s.middleware = append(s.middleware, otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// WithRateLimiters enables admission control: read applies to lookups and
// listings, write to requests that change favorites or alerts. Either may be nil.
func WithRateLimiters(read, write ratelimit.Limiter, trustForwardedFor bool) RouteOption {
	return func(s *routeSettings) {
		s.readLimiter = read
		s.writeLimiter = write
		s.trustForwardedFor = trustForwardedFor
	}
}

// SetupRoutes configures the HTTP routes for the API.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	settings := &routeSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	router := mux.NewRouter()
	for _, mw := range settings.middleware {
		router.Use(mw)
	}

	keyFn := ratelimit.RouteKey(settings.trustForwardedFor)
	limited := func(l ratelimit.Limiter) func(http.Handler) http.Handler {
		if l == nil {
			return func(h http.Handler) http.Handler { return h }
		}
		return ratelimit.Middleware(l, keyFn)
	}
	read := limited(settings.readLimiter)
	write := limited(settings.writeLimiter)

	versionGate := func(h http.Handler) http.Handler { return h }
	if config.Security.MinClientVersion != "" {
		minimum, err := semver.NewVersion(config.Security.MinClientVersion)
		if err != nil {
			// Config validation rejects this before routes are built
			slog.Error("Ignoring invalid minimum client version", "value", config.Security.MinClientVersion, "error", err)
		} else {
			versionGate = clientVersionMiddleware(minimum)
		}
	}

	// API routes are registered on the root router with full paths. Routes on a
	// PathPrefix subrouter inherit its prefix matcher, and a later prefix match
	// discards an earlier method mismatch, turning 405 into 404.
	handle := func(path, method string, h http.Handler) {
		router.Handle(apiPrefix+path, versionGate(h)).Methods(method)
	}
	userOwned := func(policy func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
		return policy(userIDMiddleware(fn))
	}

	// Facility lookups: no caller identity needed
	handle("/facilities", "GET", read(http.HandlerFunc(handlers.SearchFacilities)))
	handle("/facilities/{facility_id}", "GET", read(http.HandlerFunc(handlers.GetFacility)))
	handle("/facilities/{facility_id}/availability", "GET", read(http.HandlerFunc(handlers.GetAvailability)))

	// Caller-owned resources
	handle("/favorites", "GET", userOwned(read, handlers.ListFavorites))
	handle("/favorites/{facility_id}", "PUT", userOwned(write, handlers.AddFavorite))
	handle("/favorites/{facility_id}", "DELETE", userOwned(write, handlers.RemoveFavorite))
	handle("/alerts", "GET", userOwned(read, handlers.ListAlerts))
	handle("/alerts", "POST", userOwned(write, handlers.CreateAlert))
	handle("/alerts/{alert_id}", "DELETE", userOwned(write, handlers.DeleteAlert))

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc(apiPrefix+"/health", handlers.HealthCheck).Methods("GET")

	// Preflight catch-all. A single MatcherFunc so it never clears a method
	// mismatch recorded by the routes above.
	router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions &&
			(r.URL.Path == apiPrefix || strings.HasPrefix(r.URL.Path, apiPrefix+"/"))
	}).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest, "Method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "Resource not found")
	})

	return router
}
