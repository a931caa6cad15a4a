// Package observe provides the observability primitives of the evaluator:
// OpenTelemetry metrics, tracing helpers, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported to
// Prometheus by [InitProvider]. Tests should build their own [Metrics] with
// [NewMetrics] over a manual reader instead of using [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/speakeval"

// Metrics holds all metric instruments. The OTel instruments are safe for
// concurrent use.
type Metrics struct {
	// EvaluationDuration tracks the end-to-end latency of one evaluation.
	EvaluationDuration metric.Float64Histogram

	// StageDuration tracks per-stage latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// Evaluations counts finished evaluations. Attribute: verdict
	// (correct|incorrect|no_speech|timeout|error).
	Evaluations metric.Int64Counter

	// AxisScore records every axis score. Attribute: axis
	// (semantic|keyword|phonetic|weighted).
	AxisScore metric.Float64Histogram

	// CacheLookups counts cache reads. Attributes: cache
	// (embedding|keywords), result (hit|miss|error).
	CacheLookups metric.Int64Counter

	// SemanticFallbacks counts semantic scores served by the uncached retry.
	SemanticFallbacks metric.Int64Counter

	// ProviderRequests counts embedding provider calls. Attributes:
	// provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts embedding provider failures. Attributes:
	// provider, kind.
	ProviderErrors metric.Int64Counter

	// EventsPublished counts evaluation events. Attribute: status.
	EventsPublished metric.Int64Counter

	// ActiveEvaluations is the number of evaluations in flight.
	ActiveEvaluations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are tuned for embedding round trips (seconds).
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

var scoreBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EvaluationDuration, err = m.Float64Histogram("speakeval.evaluation.duration",
		metric.WithDescription("Latency of one complete answer evaluation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("speakeval.stage.duration",
		metric.WithDescription("Latency of an evaluation stage by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Evaluations, err = m.Int64Counter("speakeval.evaluations",
		metric.WithDescription("Total evaluations by verdict."),
	); err != nil {
		return nil, err
	}
	if met.AxisScore, err = m.Float64Histogram("speakeval.score",
		metric.WithDescription("Distribution of axis scores by axis."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("speakeval.cache.lookups",
		metric.WithDescription("Cache reads by cache and result."),
	); err != nil {
		return nil, err
	}
	if met.SemanticFallbacks, err = m.Int64Counter("speakeval.semantic.fallbacks",
		metric.WithDescription("Semantic scores computed by the uncached retry."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("speakeval.provider.requests",
		metric.WithDescription("Embedding provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("speakeval.provider.errors",
		metric.WithDescription("Embedding provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.EventsPublished, err = m.Int64Counter("speakeval.events.published",
		metric.WithDescription("Evaluation events published by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveEvaluations, err = m.Int64UpDownCounter("speakeval.active_evaluations",
		metric.WithDescription("Number of evaluations in flight."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speakeval.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built from the global
// meter provider on first use. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEvaluation records a finished evaluation.
func (m *Metrics) RecordEvaluation(ctx context.Context, verdict string, d time.Duration) {
	m.Evaluations.Add(ctx, 1, metric.WithAttributes(Attr("verdict", verdict)))
	m.EvaluationDuration.Record(ctx, d.Seconds())
}

// RecordStage records the latency of one evaluation stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("stage", stage)))
}

// RecordScore records one axis score.
func (m *Metrics) RecordScore(ctx context.Context, axis string, v float64) {
	m.AxisScore.Record(ctx, v, metric.WithAttributes(Attr("axis", axis)))
}

// RecordCacheLookup records a cache read outcome.
func (m *Metrics) RecordCacheLookup(ctx context.Context, cache, result string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(Attr("cache", cache), Attr("result", result)))
}

// RecordProviderRequest records an embedding provider request.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
		Attr("status", status),
	))
}

// RecordProviderError records an embedding provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}

// RecordEvent records the outcome of publishing an evaluation event.
func (m *Metrics) RecordEvent(ctx context.Context, status string) {
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}
