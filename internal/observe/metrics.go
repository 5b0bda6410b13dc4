// Package observe provides application-wide observability primitives for
// khazna: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
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

// meterName is the instrumentation scope name used for all khazna metrics.
const meterName = "github.com/khazna/khazna"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// LLMDuration tracks LLM inference latency (chat, translate, extract, ...).
	LLMDuration metric.Float64Histogram

	// IngestDuration tracks end-to-end ingestion pipeline latency per document.
	IngestDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool-call execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// SchedulerJobDuration tracks proactive scheduler job wall-clock time.
	SchedulerJobDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// RouteHits counts smart-router route classifications. Use with attribute:
	//   attribute.String("route", ...)
	RouteHits metric.Int64Counter

	// EntitiesResolved counts entity-resolution outcomes. Use with attributes:
	//   attribute.String("entity_type", ...), attribute.String("outcome", "vector"|"graph_contains"|"new")
	EntitiesResolved metric.Int64Counter

	// SchedulerJobRuns counts proactive scheduler job executions. Use with
	// attributes: attribute.String("job", ...), attribute.String("status", ...)
	SchedulerJobRuns metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of chat sessions with non-empty
	// working memory.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("khazna.llm.duration",
		metric.WithDescription("Latency of LLM gateway calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestDuration, err = m.Float64Histogram("khazna.ingest.duration",
		metric.WithDescription("Latency of the ingestion pipeline per document."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("khazna.tool_execution.duration",
		metric.WithDescription("Latency of tool-call execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SchedulerJobDuration, err = m.Float64Histogram("khazna.scheduler.job.duration",
		metric.WithDescription("Wall-clock duration of proactive scheduler jobs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("khazna.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("khazna.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.RouteHits, err = m.Int64Counter("khazna.router.hits",
		metric.WithDescription("Total smart-router classifications by route."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesResolved, err = m.Int64Counter("khazna.entity_resolution.count",
		metric.WithDescription("Total entity resolution outcomes by entity type and outcome."),
	); err != nil {
		return nil, err
	}
	if met.SchedulerJobRuns, err = m.Int64Counter("khazna.scheduler.job.runs",
		metric.WithDescription("Total proactive scheduler job executions by job and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("khazna.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("khazna.active_sessions",
		metric.WithDescription("Number of chat sessions with non-empty working memory."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("khazna.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordRouteHit is a convenience method that records a smart-router route
// classification.
func (m *Metrics) RecordRouteHit(ctx context.Context, route string) {
	m.RouteHits.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// RecordEntityResolved is a convenience method that records an entity
// resolution outcome.
func (m *Metrics) RecordEntityResolved(ctx context.Context, entityType, outcome string) {
	m.EntitiesResolved.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity_type", entityType),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordSchedulerJob is a convenience method that records a scheduler job run
// and its duration.
func (m *Metrics) RecordSchedulerJob(ctx context.Context, job, status string, durationSeconds float64) {
	m.SchedulerJobRuns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("job", job),
			attribute.String("status", status),
		),
	)
	m.SchedulerJobDuration.Record(ctx, durationSeconds, metric.WithAttributes(attribute.String("job", job)))
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
