package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"event-analytics/client/internal/logging"
)

// sendTimeout is the max time allowed for a single async send. Used by Dispatch and by
// ShutdownDrainDuration.
const sendTimeout = 5 * time.Second

// ShutdownDrainDuration is the default bound for Wait at process exit. Must be >= sendTimeout.
const ShutdownDrainDuration = sendTimeout

// IdentitySource supplies the ids stamped on every envelope. *identity.Store implements it.
type IdentitySource interface {
	VisitorID(ctx context.Context) string
	BrowserSessionID(ctx context.Context) string
}

// Locator reports the current path. *navigation.History implements it.
type Locator interface {
	Current() string
}

// Options configures a Dispatcher. Identity and Sender are required.
type Options struct {
	Identity         IdentitySource
	Location         Locator
	Sender           Sender
	UserAgent        string
	ScreenResolution string
	Metrics          Metrics
	Logger           *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Dispatcher builds envelopes and sends them fire-and-forget. Construct one per process and
// pass it to whatever needs to track events.
type Dispatcher struct {
	identity  IdentitySource
	location  Locator
	sender    Sender
	userAgent string
	screen    string
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	inFlight  sync.WaitGroup
}

// NewDispatcher returns a Dispatcher from opts.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		identity:  opts.Identity,
		location:  opts.Location,
		sender:    opts.Sender,
		userAgent: opts.UserAgent,
		screen:    opts.ScreenResolution,
		metrics:   opts.Metrics,
		logger:    logging.OrDiscard(opts.Logger),
		now:       opts.Now,
	}
	if d.metrics == nil {
		d.metrics = noopMetrics{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Build assembles the envelope for eventType: system fields first, then attrs, so attrs win
// on key collisions. ctx bounds the identity reads only.
func (d *Dispatcher) Build(ctx context.Context, eventType string, attrs Attributes) Envelope {
	env := make(Envelope, 7+len(attrs))
	env[FieldEventType] = eventType
	if d.identity != nil {
		env[FieldUserID] = d.identity.VisitorID(ctx)
		env[FieldSessionID] = d.identity.BrowserSessionID(ctx)
	} else {
		env[FieldUserID] = ""
		env[FieldSessionID] = ""
	}
	env[FieldTimestamp] = formatTimestamp(d.now())
	if d.location != nil {
		env[FieldURL] = d.location.Current()
	} else {
		env[FieldURL] = ""
	}
	env[FieldUserAgent] = d.userAgent
	env[FieldScreenResolution] = d.screen
	for k, v := range attrs {
		env[k] = v
	}
	return env
}

// Dispatch builds the envelope synchronously and sends it in a goroutine so the caller is not
// blocked. Failures are logged at warn and counted; nothing is returned, retried or queued.
//
// The goroutine uses context.Background() with sendTimeout so caller cancellation does not abort
// an in-flight send. A nil Dispatcher is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, attrs Attributes) {
	if d == nil {
		return
	}
	env := d.Build(ctx, eventType, attrs)
	d.metrics.Dispatched(ctx, eventType)
	if d.sender == nil {
		d.logger.Warn("telemetry: no sender configured, event dropped", "event_type", eventType)
		d.metrics.Dropped(ctx, eventType)
		return
	}

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := d.sender.Send(sendCtx, env); err != nil {
			d.logger.Warn("telemetry: event dropped", "event_type", eventType, "error", err)
			d.metrics.Dropped(sendCtx, eventType)
			return
		}
		d.logger.Debug("telemetry: event tracked", "event_type", eventType)
		d.metrics.Accepted(sendCtx, eventType)
	}()
}

// Wait blocks until every dispatched send finished or ctx is done, returning ctx.Err() in the
// latter case. Sends still running are abandoned, not cancelled.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
