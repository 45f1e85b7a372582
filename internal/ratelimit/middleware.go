package ratelimit

import (
	"encoding/json"
	"facilitywatch/internal/models"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// UnknownCaller is the caller address used when none can be determined. All
// such requests share one bucket per route.
const UnknownCaller = "unknown"

// KeyFunc derives the identity key a request is limited on.
type KeyFunc func(r *http.Request) string

// RouteKey returns a KeyFunc that keys on HTTP method, matched route template
// and caller address. The route template (e.g. /api/v1/facilities/{facility_id})
// is used instead of the resolved path so path parameters do not multiply keys.
// Forwarding headers are only consulted when trustForwardedFor is set.
func RouteKey(trustForwardedFor bool) KeyFunc {
	return func(r *http.Request) string {
		return r.Method + " " + routeTemplate(r) + " " + ClientAddress(r, trustForwardedFor)
	}
}

// Middleware returns HTTP middleware that runs every request through limiter
// before the wrapped handler. Denied requests get a 429 with a Retry-After
// header and never reach the handler.
func Middleware(limiter Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = RouteKey(false)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			decision := limiter.Allow(key)

			// Always set rate limit headers
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retryAfterSecs := decision.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSecs, 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded", models.ErrorCodeRateLimited)
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"key", key,
					"limit", decision.Limit,
					"retry_after_ms", decision.RetryAfterMillis(),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// routeTemplate returns the path template of the matched mux route, falling
// back to the raw path when the request was not routed through mux.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
			return tpl
		}
	}
	return r.URL.Path
}

// ClientAddress returns the best-effort caller address: the first
// X-Forwarded-For entry or X-Real-IP when forwarding headers are trusted,
// otherwise the connection's remote host, otherwise UnknownCaller.
func ClientAddress(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return UnknownCaller
}
