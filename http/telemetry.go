package http

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/keel/http"

var (
	attrMethod   = attribute.Key("http.request.method")
	attrRoute    = attribute.Key("http.route")
	attrStatus   = attribute.Key("http.response.status_code")
	attrProtocol = attribute.Key("network.protocol.version")
	attrError    = attribute.Key("error.type")
)

// instruments holds the OpenTelemetry handles a Server records into.
type instruments struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	connections    metric.Int64UpDownCounter
	protocolErrors metric.Int64Counter
	drainAborted   metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (*instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	meter := mp.Meter(instrumentationName)
	ins := &instruments{
		tracer:     tp.Tracer(instrumentationName),
		propagator: prop,
	}

	var err, errs error
	ins.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Requests answered, by method, route and status."),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)

	ins.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time from a parsed request to its written response."),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	ins.connections, err = meter.Int64UpDownCounter("http.server.active_connections",
		metric.WithDescription("Connections currently owned by a connection handler."),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	ins.protocolErrors, err = meter.Int64Counter("http.server.protocol_errors",
		metric.WithDescription("Requests rejected by the parser, by kind."),
		metric.WithUnit("{error}"))
	errs = errors.Join(errs, err)

	ins.drainAborted, err = meter.Int64Counter("http.server.drain.aborted",
		metric.WithDescription("Drains that hit their deadline with connections in flight."),
		metric.WithUnit("{drain}"))
	errs = errors.Join(errs, err)

	if errs != nil {
		return nil, errs
	}
	return ins, nil
}

// startRequest joins any trace context carried by the request headers and
// opens a server span.
func (ins *instruments) startRequest(ctx context.Context, req *Request) (context.Context, trace.Span) {
	ctx = ins.propagator.Extract(ctx, headerCarrier{h: &req.Headers})
	return ins.tracer.Start(ctx, req.Method.String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attrMethod.String(req.Method.String()),
			attrProtocol.String(protocolVersion(req.Proto)),
		))
}

func (ins *instruments) routed(span trace.Span, req *Request) {
	if req.Pattern == "" {
		return
	}
	span.SetName(req.Method.String() + " " + req.Pattern)
	span.SetAttributes(attrRoute.String(req.Pattern))
}

func (ins *instruments) endRequest(ctx context.Context, span trace.Span, req *Request, status Status, start time.Time, fault error) {
	attrs := []attribute.KeyValue{
		attrMethod.String(req.Method.String()),
		attrStatus.Int(int(status)),
	}
	if req.Pattern != "" {
		attrs = append(attrs, attrRoute.String(req.Pattern))
	}

	span.SetAttributes(attrStatus.Int(int(status)))
	if fault != nil {
		span.RecordError(fault)
		span.SetStatus(codes.Error, fault.Error())
		attrs = append(attrs, attrError.String("handler_fault"))
	} else if status >= 500 {
		span.SetStatus(codes.Error, status.Reason())
	}
	span.End()

	set := metric.WithAttributes(attrs...)
	ins.requests.Add(ctx, 1, set)
	ins.duration.Record(ctx, time.Since(start).Seconds(), set)
}

func (ins *instruments) protocolError(ctx context.Context, kind ParseErrorKind) {
	ins.protocolErrors.Add(ctx, 1, metric.WithAttributes(attrError.String(kind.String())))
}

func protocolVersion(proto string) string {
	if proto == protocolHttp10 {
		return "1.0"
	}
	return "1.1"
}
