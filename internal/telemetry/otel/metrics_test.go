package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			byType := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("event_type"))
				byType[v.AsString()] += dp.Value
			}
			out[m.Name] = byType
		}
	}
	return out
}

func TestDispatchMetrics_Counts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewDispatchMetrics(mp)
	if err != nil {
		t.Fatalf("NewDispatchMetrics: %v", err)
	}
	ctx := context.Background()
	m.Dispatched(ctx, "page_view")
	m.Dispatched(ctx, "page_view")
	m.Dispatched(ctx, "click")
	m.Accepted(ctx, "page_view")
	m.Dropped(ctx, "page_view")
	m.Accepted(ctx, "click")

	sums := collectSums(t, reader)
	testCases := []struct {
		metric, eventType string
		want              int64
	}{
		{"analytics.events.dispatched", "page_view", 2},
		{"analytics.events.dispatched", "click", 1},
		{"analytics.events.accepted", "page_view", 1},
		{"analytics.events.accepted", "click", 1},
		{"analytics.events.dropped", "page_view", 1},
		{"analytics.events.dropped", "click", 0},
	}
	for _, tc := range testCases {
		if got := sums[tc.metric][tc.eventType]; got != tc.want {
			t.Errorf("%s{event_type=%q} = %d, want %d", tc.metric, tc.eventType, got, tc.want)
		}
	}
}
