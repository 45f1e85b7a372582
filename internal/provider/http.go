package provider

import (
	"context"
	"encoding/json"
	"facilitywatch/internal/models"
	"facilitywatch/internal/version"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// HTTPProvider talks JSON to the upstream facility API. Outbound requests are
// throttled with a token bucket so the service never exceeds the quota it was
// issued, regardless of how many clients it is serving.
type HTTPProvider struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	throttle *rate.Limiter
}

type searchResponse struct {
	Facilities []models.Facility `json:"facilities"`
}

type availabilityResponse struct {
	FacilityID string        `json:"facility_id"`
	Date       string        `json:"date"`
	Slots      []models.Slot `json:"slots"`
}

// NewHTTPProvider creates a provider for cfg.BaseURL. A non-positive
// RequestsPerSecond disables outbound throttling.
func NewHTTPProvider(cfg models.ProviderConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &HTTPProvider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		throttle: rate.NewLimiter(limit, burst),
	}
}

func (p *HTTPProvider) Search(ctx context.Context, query, state string, limit int) ([]models.Facility, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if state != "" {
		params.Set("state", state)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp searchResponse
	if err := p.get(ctx, "/facilities", params, &resp); err != nil {
		return nil, err
	}
	if resp.Facilities == nil {
		resp.Facilities = []models.Facility{}
	}
	if limit > 0 && len(resp.Facilities) > limit {
		resp.Facilities = resp.Facilities[:limit]
	}
	return resp.Facilities, nil
}

func (p *HTTPProvider) Facility(ctx context.Context, id string) (*models.Facility, error) {
	var facility models.Facility
	if err := p.get(ctx, "/facilities/"+url.PathEscape(id), nil, &facility); err != nil {
		return nil, err
	}
	if facility.ID == "" {
		facility.ID = id
	}
	return &facility, nil
}

func (p *HTTPProvider) Availability(ctx context.Context, id, date string) (*models.Availability, error) {
	params := url.Values{"date": []string{date}}

	var resp availabilityResponse
	if err := p.get(ctx, "/facilities/"+url.PathEscape(id)+"/availability", params, &resp); err != nil {
		return nil, err
	}

	avail := &models.Availability{
		FacilityID: id,
		Date:       date,
		Slots:      resp.Slots,
		FetchedAt:  time.Now().UTC(),
	}
	if avail.Slots == nil {
		avail.Slots = []models.Slot{}
	}
	avail.Recount()
	return avail, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := p.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("%w: throttle: %v", ErrUpstream, err)
	}

	endpoint := p.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrFacilityNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
