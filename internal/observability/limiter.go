package observability

import (
	"context"
	"facilitywatch/internal/ratelimit"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentedLimiter wraps a ratelimit.Limiter and counts its decisions by
// policy and outcome. The number of tracked identities is exported as an
// observable gauge read at collection time.
type InstrumentedLimiter struct {
	inner        ratelimit.Limiter
	decisions    metric.Int64Counter
	allowedAttrs metric.AddOption
	deniedAttrs  metric.AddOption
	registration metric.Registration
	closeOnce    sync.Once
}

var _ ratelimit.Limiter = (*InstrumentedLimiter)(nil)

// NewInstrumentedLimiter wraps inner, labelling its metrics with policy.
func NewInstrumentedLimiter(inner ratelimit.Limiter, policy string) (*InstrumentedLimiter, error) {
	meter := otel.Meter("facilitywatch/ratelimit")

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Admission decisions made by the rate limiter"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	entries, err := meter.Int64ObservableGauge(
		"ratelimit.entries",
		metric.WithDescription("Caller identities currently tracked by the rate limiter"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	policyAttr := attribute.String("policy", policy)
	gaugeAttrs := metric.WithAttributes(policyAttr)
	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(entries, int64(inner.Len()), gaugeAttrs)
		return nil
	}, entries)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:        inner,
		decisions:    decisions,
		allowedAttrs: metric.WithAttributes(policyAttr, attribute.String("outcome", "allowed")),
		deniedAttrs:  metric.WithAttributes(policyAttr, attribute.String("outcome", "denied")),
		registration: registration,
	}, nil
}

// Allow delegates to the wrapped limiter and records the outcome.
func (l *InstrumentedLimiter) Allow(key string) ratelimit.Decision {
	d := l.inner.Allow(key)
	if d.Allowed {
		l.decisions.Add(context.Background(), 1, l.allowedAttrs)
	} else {
		l.decisions.Add(context.Background(), 1, l.deniedAttrs)
	}
	return d
}

func (l *InstrumentedLimiter) Policy() ratelimit.Policy {
	return l.inner.Policy()
}

func (l *InstrumentedLimiter) Len() int {
	return l.inner.Len()
}

// Close unregisters the gauge callback and closes the wrapped limiter.
func (l *InstrumentedLimiter) Close() {
	l.closeOnce.Do(func() {
		_ = l.registration.Unregister()
		l.inner.Close()
	})
}
