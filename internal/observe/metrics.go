// Package observe provides OpenTelemetry metrics and tracing for the
// navigator.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format by [InitProvider]. Tests should use [NewMetrics] with a
// ManualReader-backed provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/escalopa/quran-navigator"

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// MatchOutcomes counts matcher results. Attribute: kind.
	MatchOutcomes metric.Int64Counter

	// SearchRequests counts remote search phases. Attributes: phase, status.
	SearchRequests metric.Int64Counter

	// SearchFallbacks counts how often the second search phase ran.
	SearchFallbacks metric.Int64Counter

	// SearchDuration tracks end-to-end search latency including fallback.
	SearchDuration metric.Float64Histogram

	// ProviderRequests counts Quran API calls. Attributes: endpoint, status.
	ProviderRequests metric.Int64Counter

	// ClipsStarted counts clips handed to an output. Attribute: trigger.
	ClipsStarted metric.Int64Counter

	// PlaybackAdvances counts end-of-clip decisions. Attribute: decision.
	PlaybackAdvances metric.Int64Counter

	// ClipErrors counts clip failures. Attribute: kind.
	ClipErrors metric.Int64Counter

	// Preloads counts preload outcomes. Attribute: status.
	Preloads metric.Int64Counter

	// ActiveSessions tracks live playback sessions.
	ActiveSessions metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.MatchOutcomes, err = m.Int64Counter("navigator.match.outcomes",
		metric.WithDescription("Reference matcher results by intent kind."),
	); err != nil {
		return nil, err
	}
	if met.SearchRequests, err = m.Int64Counter("navigator.search.requests",
		metric.WithDescription("Remote search requests by phase and status."),
	); err != nil {
		return nil, err
	}
	if met.SearchFallbacks, err = m.Int64Counter("navigator.search.fallbacks",
		metric.WithDescription("Searches that ran the two-keyword fallback phase."),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("navigator.search.duration",
		metric.WithDescription("Latency of a full search including fallback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("navigator.provider.requests",
		metric.WithDescription("Quran API requests by endpoint and status."),
	); err != nil {
		return nil, err
	}
	if met.ClipsStarted, err = m.Int64Counter("navigator.playback.clips_started",
		metric.WithDescription("Clips started by trigger."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackAdvances, err = m.Int64Counter("navigator.playback.advances",
		metric.WithDescription("End-of-clip decisions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ClipErrors, err = m.Int64Counter("navigator.playback.clip_errors",
		metric.WithDescription("Clip failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.Preloads, err = m.Int64Counter("navigator.playback.preloads",
		metric.WithDescription("Preload outcomes by status."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("navigator.playback.active_sessions",
		metric.WithDescription("Number of live playback sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built on the global
// meter provider. Panics if instrument creation fails.
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

func (m *Metrics) RecordMatch(ctx context.Context, kind string) {
	m.MatchOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordSearchPhase(ctx context.Context, phase, status string) {
	m.SearchRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("status", status),
		),
	)
}

func (m *Metrics) RecordProviderRequest(ctx context.Context, endpoint, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

func (m *Metrics) RecordClipStarted(ctx context.Context, trigger string) {
	m.ClipsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *Metrics) RecordAdvance(ctx context.Context, decision string) {
	m.PlaybackAdvances.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func (m *Metrics) RecordClipError(ctx context.Context, kind string) {
	m.ClipErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordPreload(ctx context.Context, status string) {
	m.Preloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
