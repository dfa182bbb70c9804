// Package metrics holds the pipeline's OpenTelemetry instruments.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/CelestinFernandes/geo-pot/pkg/core"
)

const instrumentationName = "github.com/CelestinFernandes/geo-pot/internal/metrics"

// Metrics records detection round trips, capture outcomes and discarded
// live completions.
type Metrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
	stale    metric.Int64Counter
	photos   metric.Int64Counter
}

// New creates the instruments from the global meter provider (no-op if not configured).
func New() (*Metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &Metrics{}

	var err error
	out.requests, err = m.Int64Counter(
		"detection.requests",
		metric.WithDescription("Detection requests sent"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating requests counter: %w", err)
	}

	out.failures, err = m.Int64Counter(
		"detection.failures",
		metric.WithDescription("Detection requests that failed, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	out.latency, err = m.Float64Histogram(
		"detection.latency",
		metric.WithDescription("Detection round trip time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	out.stale, err = m.Int64Counter(
		"live.completions.stale",
		metric.WithDescription("Live detection completions discarded as stale"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stale counter: %w", err)
	}

	out.photos, err = m.Int64Counter(
		"capture.photos",
		metric.WithDescription("Photo records added to the gallery, by source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating photos counter: %w", err)
	}

	return out, nil
}

// FailureKind classifies a detection error for metric attributes.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, core.ErrNetworkFailure):
		return "network"
	case errors.Is(err, core.ErrProtocolFailure):
		return "protocol"
	default:
		return "other"
	}
}

// DetectionDone records one finished detection round trip.
func (m *Metrics) DetectionDone(ctx context.Context, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1)
	m.latency.Record(ctx, float64(took.Microseconds())/1000)
	if err != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", FailureKind(err))))
	}
}

// StaleCompletion records a live completion that was discarded.
func (m *Metrics) StaleCompletion(ctx context.Context) {
	if m == nil {
		return
	}
	m.stale.Add(ctx, 1)
}

// PhotoAdded records a photo record entering the gallery.
func (m *Metrics) PhotoAdded(ctx context.Context, source core.PhotoSource) {
	if m == nil {
		return
	}
	m.photos.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
}
