package observability

import (
	"context"
	"facilitywatch/internal/models"
	"facilitywatch/internal/storage"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("facilitywatch/storage")
	meter := otel.Meter("facilitywatch/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Favorites(ctx context.Context, userID string) ([]*models.Favorite, error) {
	ctx, span := s.startSpan(ctx, "Favorites")
	start := time.Now()
	result, err := s.inner.Favorites(ctx, userID)
	s.record(ctx, span, "Favorites", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveFavorite(ctx context.Context, fav *models.Favorite) error {
	ctx, span := s.startSpan(ctx, "SaveFavorite", attribute.String("facility_id", fav.FacilityID))
	start := time.Now()
	err := s.inner.SaveFavorite(ctx, fav)
	s.record(ctx, span, "SaveFavorite", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteFavorite(ctx context.Context, userID, facilityID string) error {
	ctx, span := s.startSpan(ctx, "DeleteFavorite", attribute.String("facility_id", facilityID))
	start := time.Now()
	err := s.inner.DeleteFavorite(ctx, userID, facilityID)
	s.record(ctx, span, "DeleteFavorite", start, err)
	return err
}

func (s *InstrumentedStorage) Alerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	ctx, span := s.startSpan(ctx, "Alerts")
	start := time.Now()
	result, err := s.inner.Alerts(ctx, userID)
	s.record(ctx, span, "Alerts", start, err)
	return result, err
}

func (s *InstrumentedStorage) AllAlerts(ctx context.Context) ([]*models.Alert, error) {
	ctx, span := s.startSpan(ctx, "AllAlerts")
	start := time.Now()
	result, err := s.inner.AllAlerts(ctx)
	s.record(ctx, span, "AllAlerts", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	ctx, span := s.startSpan(ctx, "GetAlert", attribute.String("alert_id", alertID))
	start := time.Now()
	result, err := s.inner.GetAlert(ctx, alertID)
	s.record(ctx, span, "GetAlert", start, err)
	return result, err
}

func (s *InstrumentedStorage) SaveAlert(ctx context.Context, alert *models.Alert) error {
	ctx, span := s.startSpan(ctx, "SaveAlert",
		attribute.String("alert_id", alert.ID),
		attribute.String("facility_id", alert.FacilityID),
	)
	start := time.Now()
	err := s.inner.SaveAlert(ctx, alert)
	s.record(ctx, span, "SaveAlert", start, err)
	return err
}

func (s *InstrumentedStorage) DeleteAlert(ctx context.Context, alertID string) error {
	ctx, span := s.startSpan(ctx, "DeleteAlert", attribute.String("alert_id", alertID))
	start := time.Now()
	err := s.inner.DeleteAlert(ctx, alertID)
	s.record(ctx, span, "DeleteAlert", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
