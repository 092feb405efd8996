package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"event-analytics/client/internal/analytics"
	"event-analytics/client/internal/authapi"
	"event-analytics/client/internal/config"
	"event-analytics/client/internal/device"
	"event-analytics/client/internal/gate"
	"event-analytics/client/internal/identity"
	"event-analytics/client/internal/navigation"
	"event-analytics/client/internal/session"
	"event-analytics/client/internal/storage"
	"event-analytics/client/internal/telemetry"
	"event-analytics/client/internal/telemetry/loki"
	telemetryotel "event-analytics/client/internal/telemetry/otel"
)

// app holds every component, built once per process and shared by reference.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	store      storage.Store
	identity   *identity.Store
	history    *navigation.History
	auth       *authapi.Client
	dispatcher *telemetry.Dispatcher
	session    *session.Manager
	gate       gate.Evaluator
	analytics  *analytics.Client
	providers  *telemetryotel.Providers

	stopPageViews func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage unavailable: %w", err)
	}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: device.Version,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	providers.SetGlobal()

	metrics, err := telemetryotel.NewDispatchMetrics(providers.MeterProvider)
	if err != nil {
		logger.Warn("dispatch metrics disabled", "error", err)
		metrics = nil
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		out:       out,
		store:     store,
		identity:  identity.NewStore(store, logger),
		history:   navigation.NewHistory(session.HomePath),
		auth:      authapi.NewClient(cfg.APIBaseURL, cfg.RequestTimeout()),
		providers: providers,
	}

	sender := newSender(cfg, providers, logger)
	info := device.Detect(cfg.UserAgent, cfg.ScreenResolution)
	opts := telemetry.Options{
		Identity:         a.identity,
		Location:         a.history,
		Sender:           sender,
		UserAgent:        info.UserAgent,
		ScreenResolution: info.ScreenResolution,
		Logger:           logger,
	}
	if metrics != nil {
		opts.Metrics = metrics
	}
	a.dispatcher = telemetry.NewDispatcher(opts)

	a.session = session.NewManager(store, a.auth, a.history, logger)
	a.analytics = analytics.NewClient(cfg.APIBaseURL, a.session, cfg.RequestTimeout())

	if ev, err := gate.NewOPAEvaluator(ctx, logger); err != nil {
		logger.Warn("gate policy unavailable, using built-in rules", "error", err)
		a.gate = gate.RulesEvaluator{}
	} else {
		a.gate = ev
	}

	a.stopPageViews = a.dispatcher.TrackPageViews(ctx, a.history)
	a.session.Bootstrap(ctx)
	return a, nil
}

// newSender returns the ingestion sender, mirrored to the OTel log pipeline and Loki when
// configured. Only ingestion decides whether an event was accepted.
func newSender(cfg *config.Config, providers *telemetryotel.Providers, logger *slog.Logger) telemetry.Sender {
	client := &http.Client{Timeout: cfg.RequestTimeout()}
	primary := telemetry.NewHTTPSender(cfg.APIBaseURL, client)

	var mirrors []telemetry.Sender
	if cfg.MirrorEventsToOTel && cfg.TelemetryExportEnabled() {
		mirrors = append(mirrors, telemetryotel.NewEventSender(providers.LoggerProvider))
	}
	if cfg.LokiURL != "" {
		mirrors = append(mirrors, loki.NewSender(cfg.LokiURL, client))
	}
	if len(mirrors) == 0 {
		return primary
	}
	return &telemetry.MultiSender{
		Primary: primary,
		Mirrors: mirrors,
		OnMirrorError: func(err error) {
			logger.Debug("telemetry mirror failed", "error", err)
		},
	}
}

// close drains in-flight events, flushes exporters and closes storage.
func (a *app) close() {
	if a.stopPageViews != nil {
		a.stopPageViews()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.DrainDuration())
	defer cancel()
	if err := a.dispatcher.Wait(drainCtx); err != nil {
		a.logger.Warn("abandoning in-flight telemetry events", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancelShutdown()
	if err := a.providers.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("storage close", "error", err)
	}
}
