package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DispatchMetrics implements telemetry.Metrics with three Int64Counters keyed by event_type.
type DispatchMetrics struct {
	dispatched metric.Int64Counter
	accepted   metric.Int64Counter
	dropped    metric.Int64Counter
}

// NewDispatchMetrics registers the counters on mp's meter.
func NewDispatchMetrics(mp metric.MeterProvider) (*DispatchMetrics, error) {
	meter := mp.Meter(instrumentationName)
	dispatched, err := meter.Int64Counter("analytics.events.dispatched",
		metric.WithDescription("Telemetry events handed to the dispatcher."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}
	accepted, err := meter.Int64Counter("analytics.events.accepted",
		metric.WithDescription("Telemetry events the ingestion endpoint accepted."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("analytics.events.dropped",
		metric.WithDescription("Telemetry events lost to a rejection or transport failure."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}
	return &DispatchMetrics{dispatched: dispatched, accepted: accepted, dropped: dropped}, nil
}

func (m *DispatchMetrics) Dispatched(ctx context.Context, eventType string) {
	m.dispatched.Add(ctx, 1, eventTypeAttr(eventType))
}

func (m *DispatchMetrics) Accepted(ctx context.Context, eventType string) {
	m.accepted.Add(ctx, 1, eventTypeAttr(eventType))
}

func (m *DispatchMetrics) Dropped(ctx context.Context, eventType string) {
	m.dropped.Add(ctx, 1, eventTypeAttr(eventType))
}

func eventTypeAttr(eventType string) metric.AddOption {
	return metric.WithAttributes(attribute.String("event_type", eventType))
}
