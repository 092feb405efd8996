package otel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"event-analytics/client/internal/telemetry"
)

const instrumentationName = "event-analytics/client/telemetry"

// recordEmitter is the subset of otellog.Logger the sender uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// envelopeAttrs are the envelope fields copied onto the log record as attributes.
var envelopeAttrs = []string{
	telemetry.FieldEventType,
	telemetry.FieldUserID,
	telemetry.FieldSessionID,
	telemetry.FieldURL,
	telemetry.FieldUserAgent,
	telemetry.FieldScreenResolution,
}

// NewEventSender returns a telemetry.Sender that emits each envelope as an OTel log record via
// provider. A nil provider yields a sender that accepts and discards everything.
func NewEventSender(provider *sdklog.LoggerProvider) telemetry.Sender {
	if provider == nil {
		return telemetry.SenderFunc(func(context.Context, telemetry.Envelope) error { return nil })
	}
	return &logSender{logger: provider.Logger(instrumentationName)}
}

type logSender struct {
	logger recordEmitter
	now    func() time.Time
}

// Send renders env as a record: the full envelope JSON as body, system fields as attributes
// and the envelope timestamp as the record time.
func (s *logSender) Send(ctx context.Context, env telemetry.Envelope) error {
	if env == nil {
		return nil
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("otel: encode envelope: %w", err)
	}

	rec := otellog.Record{}
	rec.SetBody(otellog.StringValue(string(body)))
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetSeverityText("INFO")
	for _, key := range envelopeAttrs {
		if v := env.String(key); v != "" {
			rec.AddAttributes(otellog.String(key, v))
		}
	}
	if ts, ok := env.Timestamp(); ok {
		rec.SetTimestamp(ts)
	} else {
		now := time.Now
		if s.now != nil {
			now = s.now
		}
		rec.SetTimestamp(now().UTC())
	}
	rec.SetObservedTimestamp(time.Now().UTC())
	s.logger.Emit(ctx, rec)
	return nil
}
