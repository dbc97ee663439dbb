// Package observe provides application-wide observability primitives for the
// dialogue engine: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all engine metrics.
const meterName = "github.com/timeportal/engine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// LLMDuration tracks chat-completion latency per character.
	LLMDuration metric.Float64Histogram

	// ConversationTurns counts completed dialogue turns. Use with attribute:
	//   attribute.String("character_id", ...)
	ConversationTurns metric.Int64Counter

	// MutationsApplied counts player-state mutations by kind.
	MutationsApplied metric.Int64Counter

	// FallbackReplies counts turns answered by the scripted fallback after a
	// backend failure or timeout.
	FallbackReplies metric.Int64Counter

	// SanitizerRejections counts learned-info submissions dropped because the
	// sanitiser altered them.
	SanitizerRejections metric.Int64Counter

	// ActiveConversations tracks the number of currently open conversation
	// windows.
	ActiveConversations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote chat-completion latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("timeportal.llm.duration",
		metric.WithDescription("Latency of chat-completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConversationTurns, err = m.Int64Counter("timeportal.conversation.turns",
		metric.WithDescription("Total completed dialogue turns by character."),
	); err != nil {
		return nil, err
	}
	if met.MutationsApplied, err = m.Int64Counter("timeportal.player.mutations",
		metric.WithDescription("Total player-state mutations by kind."),
	); err != nil {
		return nil, err
	}
	if met.FallbackReplies, err = m.Int64Counter("timeportal.conversation.fallbacks",
		metric.WithDescription("Total turns answered by the scripted fallback reply."),
	); err != nil {
		return nil, err
	}
	if met.SanitizerRejections, err = m.Int64Counter("timeportal.sanitizer.rejections",
		metric.WithDescription("Total learned-info submissions dropped by the sanitiser."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConversations, err = m.Int64UpDownCounter("timeportal.conversations.active",
		metric.WithDescription("Number of currently open conversation windows."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("timeportal.http.request.duration",
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

// RecordTurn records a completed dialogue turn for a character.
func (m *Metrics) RecordTurn(ctx context.Context, characterID string) {
	m.ConversationTurns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("character_id", characterID)),
	)
}

// RecordMutation records one applied player-state mutation.
func (m *Metrics) RecordMutation(ctx context.Context, kind string) {
	m.MutationsApplied.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFallback records a turn that fell back to the scripted reply.
func (m *Metrics) RecordFallback(ctx context.Context, characterID string) {
	m.FallbackReplies.Add(ctx, 1,
		metric.WithAttributes(attribute.String("character_id", characterID)),
	)
}

// RecordSanitizerRejection records a dropped learned-info submission.
func (m *Metrics) RecordSanitizerRejection(ctx context.Context, characterID string) {
	m.SanitizerRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("character_id", characterID)),
	)
}
