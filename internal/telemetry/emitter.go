package telemetry

import (
	"context"
	"errors"
)

// Sender delivers one envelope. A nil error means the event was accepted.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env Envelope) error

func (f SenderFunc) Send(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// MultiSender sends to Primary, then to every Mirror. The result is Primary's: mirror failures
// are joined into the error only when Primary also failed, and are otherwise reported to OnMirrorError.
type MultiSender struct {
	Primary       Sender
	Mirrors       []Sender
	OnMirrorError func(err error)
}

func (m *MultiSender) Send(ctx context.Context, env Envelope) error {
	var primaryErr error
	if m.Primary != nil {
		primaryErr = m.Primary.Send(ctx, env)
	}
	var mirrorErrs []error
	for _, s := range m.Mirrors {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, env); err != nil {
			mirrorErrs = append(mirrorErrs, err)
		}
	}
	if primaryErr != nil {
		return errors.Join(append([]error{primaryErr}, mirrorErrs...)...)
	}
	if len(mirrorErrs) > 0 && m.OnMirrorError != nil {
		m.OnMirrorError(errors.Join(mirrorErrs...))
	}
	return nil
}

// Metrics counts dispatch outcomes by event type. The OTel implementation lives in telemetry/otel.
type Metrics interface {
	Dispatched(ctx context.Context, eventType string)
	Accepted(ctx context.Context, eventType string)
	Dropped(ctx context.Context, eventType string)
}

type noopMetrics struct{}

func (noopMetrics) Dispatched(context.Context, string) {}
func (noopMetrics) Accepted(context.Context, string)   {}
func (noopMetrics) Dropped(context.Context, string)    {}
