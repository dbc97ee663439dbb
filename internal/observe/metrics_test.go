package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	m, _ := newTestMetrics(t)

	if m.LLMDuration == nil || m.ConversationTurns == nil || m.MutationsApplied == nil ||
		m.FallbackReplies == nil || m.SanitizerRejections == nil ||
		m.ActiveConversations == nil || m.HTTPRequestDuration == nil {
		t.Fatal("expected all instruments to be initialised")
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTurn(ctx, "blacksmith")
	m.RecordTurn(ctx, "blacksmith")
	m.RecordMutation(ctx, "grant_item")
	m.RecordFallback(ctx, "blacksmith")
	m.RecordSanitizerRejection(ctx, "blacksmith")
	m.ActiveConversations.Add(ctx, 1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}

	for _, name := range []string{
		"timeportal.conversation.turns",
		"timeportal.player.mutations",
		"timeportal.conversation.fallbacks",
		"timeportal.sanitizer.rejections",
		"timeportal.conversations.active",
	} {
		if !found[name] {
			t.Errorf("metric %q not collected", name)
		}
	}
}

func TestDefaultMetricsSingleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics should return the same instance")
	}
}
