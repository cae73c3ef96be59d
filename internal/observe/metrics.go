// Package observe provides application-wide observability primitives for the
// mediation server: OpenTelemetry metrics and tracing.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/lernobot/lernobot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TurnDuration tracks end-to-end mediation turn latency. Use with
	// attributes: attribute.String("strategy", ...), attribute.String("mode", ...)
	TurnDuration metric.Float64Histogram

	// GenerationDuration tracks model generation latency per provider.
	GenerationDuration metric.Float64Histogram

	// OCRDuration tracks per-attempt OCR extraction latency.
	OCRDuration metric.Float64Histogram

	// Turns counts completed turns. Use with attributes:
	//   attribute.String("strategy", ...), attribute.String("comprehension", ...)
	Turns metric.Int64Counter

	// ProviderRequests counts model provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts classified provider failures. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// Fallbacks counts turns answered with canned fallback text. Use with
	// attribute: attribute.String("reason", "provider"|"service")
	Fallbacks metric.Int64Counter

	// OCRFallbacks counts image turns that degraded from vision to OCR.
	OCRFallbacks metric.Int64Counter

	// Escalations counts teacher escalations (turn-terminal and watchdog).
	Escalations metric.Int64Counter

	// ActiveSessions tracks sessions with live conversation state.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments against mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.TurnDuration, err = meter.Float64Histogram("lernobot.turn.duration",
		metric.WithDescription("End-to-end mediation turn latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.GenerationDuration, err = meter.Float64Histogram("lernobot.generation.duration",
		metric.WithDescription("Model text generation latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.OCRDuration, err = meter.Float64Histogram("lernobot.ocr.duration",
		metric.WithDescription("Per-attempt OCR extraction latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.Turns, err = meter.Int64Counter("lernobot.turns",
		metric.WithDescription("Completed mediation turns")); err != nil {
		return nil, err
	}
	if m.ProviderRequests, err = meter.Int64Counter("lernobot.provider.requests",
		metric.WithDescription("Model provider API calls")); err != nil {
		return nil, err
	}
	if m.ProviderErrors, err = meter.Int64Counter("lernobot.provider.errors",
		metric.WithDescription("Classified model provider failures")); err != nil {
		return nil, err
	}
	if m.Fallbacks, err = meter.Int64Counter("lernobot.fallbacks",
		metric.WithDescription("Turns answered with canned fallback text")); err != nil {
		return nil, err
	}
	if m.OCRFallbacks, err = meter.Int64Counter("lernobot.ocr.fallbacks",
		metric.WithDescription("Image turns degraded from vision to OCR")); err != nil {
		return nil, err
	}
	if m.Escalations, err = meter.Int64Counter("lernobot.escalations",
		metric.WithDescription("Teacher escalations")); err != nil {
		return nil, err
	}
	if m.ActiveSessions, err = meter.Int64UpDownCounter("lernobot.sessions.active",
		metric.WithDescription("Sessions with live conversation state")); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics instance bound to the
// global meter provider. Initialisation errors panic: instrument creation
// only fails on programmer error (duplicate or invalid names).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// Strategy returns the standard strategy attribute.
func Strategy(s string) attribute.KeyValue { return attribute.String("strategy", s) }

// Provider returns the standard provider attribute.
func Provider(p string) attribute.KeyValue { return attribute.String("provider", p) }

// RecordProviderCall records one provider request with its outcome.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}
