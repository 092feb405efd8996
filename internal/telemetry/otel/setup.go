// Package otel wires the client's OpenTelemetry providers (OTLP over gRPC), the dispatch
// counters and the sender that mirrors telemetry envelopes as OTel log records.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const defaultMetricInterval = 10 * time.Second

// Settings selects where and how the providers export.
type Settings struct {
	// Endpoint is the collector address (host:port or URL). Empty disables export.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// Insecure forces plaintext gRPC even for https endpoints (OTEL_EXPORTER_OTLP_INSECURE).
	Insecure bool
	// MetricInterval defaults to 10s.
	MetricInterval time.Duration
}

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders creates providers exporting via OTLP gRPC to s.Endpoint. Only host:port of the
// endpoint is dialed; a path is ignored. With an empty endpoint, non-exporting providers are
// returned and Shutdown is a no-op.
func NewProviders(ctx context.Context, s Settings) (*Providers, error) {
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  sdkmetric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	target, insecure, err := grpcTarget(endpoint)
	if err != nil {
		return nil, err
	}
	insecure = insecure || s.Insecure

	res, err := newResource(s.ServiceName, s.ServiceVersion)
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	var shutdownFns []func(context.Context) error
	fail := func(err error) (*Providers, error) {
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			_ = shutdownFns[i](ctx)
		}
		return nil, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}
	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return fail(fmt.Errorf("otel: trace exporter: %w", err))
	}
	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	shutdownFns = append(shutdownFns, p.TracerProvider.Shutdown)

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return fail(fmt.Errorf("otel: metric exporter: %w", err))
	}
	interval := s.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
	)
	shutdownFns = append(shutdownFns, p.MeterProvider.Shutdown)

	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}
	logExp, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return fail(fmt.Errorf("otel: log exporter: %w", err))
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	shutdownFns = append(shutdownFns, p.LoggerProvider.Shutdown)

	// Shut down in reverse so logs and metrics flush before traces.
	p.Shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			if err := shutdownFns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return p, nil
}

// grpcTarget normalizes endpoint to host:port. insecure is true unless the scheme is https.
func grpcTarget(endpoint string) (target string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}

func newResource(serviceName, serviceVersion string) (*resource.Resource, error) {
	kvs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if serviceVersion != "" {
		kvs = append(kvs, semconv.ServiceVersionKey.String(serviceVersion))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, kvs...))
}

// SetGlobal installs the tracer and meter providers as the otel globals, which the auth client
// spans and any library instrumentation use. The LoggerProvider is passed explicitly instead.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
