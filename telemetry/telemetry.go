// Package telemetry wires the OpenTelemetry SDK for a keel process: a
// tracer, meter and logger provider sharing one resource, optional OTLP gRPC
// exporters, and an slog.Logger bridged into the log pipeline.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	ServiceName string
	// OTLP enables the gRPC exporters. Endpoint and credentials come from
	// the standard OTEL_EXPORTER_OTLP_* environment variables.
	OTLP bool
}

// Telemetry owns the SDK providers. Call Shutdown to flush them.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Propagator     propagation.TextMapPropagator
	Logger         *slog.Logger

	shutdownFuncs []func(context.Context) error
}

type options struct {
	spanProcessors []sdktrace.SpanProcessor
	metricReaders  []sdkmetric.Reader
	logProcessors  []sdklog.Processor
}

type Option func(*options)

// WithSpanProcessor adds a span processor next to the OTLP exporter.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithMetricReader adds a metric reader next to the OTLP exporter.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metricReaders = append(o.metricReaders, r) }
}

// WithLogProcessor adds a log processor next to the OTLP exporter.
func WithLogProcessor(p sdklog.Processor) Option {
	return func(o *options) { o.logProcessors = append(o.logProcessors, p) }
}

// Setup builds the providers and installs them as the OpenTelemetry globals.
// On error every provider created so far is shut down.
func Setup(ctx context.Context, cfg Config, opts ...Option) (t *Telemetry, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t = &Telemetry{}
	defer func() {
		if err != nil {
			err = errors.Join(err, t.Shutdown(ctx))
			t = nil
		}
	}()

	res, err := newResource(ctx, cfg.ServiceName)
	if err != nil {
		return t, err
	}

	t.Propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(t.Propagator)

	if t.TracerProvider, err = newTracerProvider(ctx, cfg, res, o.spanProcessors); err != nil {
		return t, err
	}
	t.shutdownFuncs = append(t.shutdownFuncs, t.TracerProvider.Shutdown)
	otel.SetTracerProvider(t.TracerProvider)

	if t.MeterProvider, err = newMeterProvider(ctx, cfg, res, o.metricReaders); err != nil {
		return t, err
	}
	t.shutdownFuncs = append(t.shutdownFuncs, t.MeterProvider.Shutdown)
	otel.SetMeterProvider(t.MeterProvider)

	if t.LoggerProvider, err = newLoggerProvider(ctx, cfg, res, o.logProcessors); err != nil {
		return t, err
	}
	t.shutdownFuncs = append(t.shutdownFuncs, t.LoggerProvider.Shutdown)
	global.SetLoggerProvider(t.LoggerProvider)

	t.Logger = otelslog.NewLogger(cfg.ServiceName, otelslog.WithLoggerProvider(t.LoggerProvider))
	return t, nil
}

// Shutdown flushes and stops every provider, newest first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var err error
	for i := len(t.shutdownFuncs) - 1; i >= 0; i-- {
		err = errors.Join(err, t.shutdownFuncs[i](ctx))
	}
	t.shutdownFuncs = nil
	return err
}

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	}
	if serviceName != "" {
		opts = append(opts, resource.WithAttributes(attribute.String("service.name", serviceName)))
	}
	return resource.New(ctx, opts...)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource, extra []sdktrace.SpanProcessor) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.OTLP {
		exp, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	for _, sp := range extra {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource, extra []sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.OTLP {
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, r := range extra {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, cfg Config, res *resource.Resource, extra []sdklog.Processor) (*sdklog.LoggerProvider, error) {
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if cfg.OTLP {
		exp, err := otlploggrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)))
	}
	for _, p := range extra {
		opts = append(opts, sdklog.WithProcessor(p))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}
