// Package telemetry wires OpenTelemetry tracing for inbound requests and
// outbound relay calls.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"event-relay/internal/config"
)

const instrumentationName = "event-relay"

// Version is the build version reported as service.version.
type Version string

// Tracing holds the tracer and propagator used by the relay. When tracing is
// disabled it carries a no-op tracer and never touches outbound headers.
type Tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	enabled    bool
	shutdown   func(context.Context) error
}

// New builds Tracing from config. With tracing disabled it returns a no-op
// instance.
func New(cfg *config.Config, v Version) (*Tracing, error) {
	if !cfg.Tracing.Enabled {
		return Disabled(), nil
	}

	ctx := context.Background()

	opts := []otlptracehttp.Option{}
	if cfg.Tracing.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint))
	}
	if cfg.Tracing.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.Tracing.ServiceName),
			semconv.ServiceVersion(string(v)),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.Tracing.SampleRate > 0 && cfg.Tracing.SampleRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRate))
	} else {
		sampler = sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	t := NewWithProvider(tp)
	t.shutdown = tp.Shutdown
	return t, nil
}

// NewWithProvider returns enabled Tracing backed by tp, propagating W3C trace
// context and baggage.
func NewWithProvider(tp trace.TracerProvider) *Tracing {
	return &Tracing{
		tracer: tp.Tracer(instrumentationName),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		enabled:  true,
		shutdown: func(context.Context) error { return nil },
	}
}

// Disabled returns a no-op Tracing.
func Disabled() *Tracing {
	return &Tracing{
		tracer:     noop.NewTracerProvider().Tracer(instrumentationName),
		propagator: propagation.NewCompositeTextMapPropagator(),
		shutdown:   func(context.Context) error { return nil },
	}
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool {
	return t.enabled
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// StartServerSpan extracts any incoming trace context from r and starts a
// server span for route.
func (t *Tracing) StartServerSpan(r *http.Request, route string) (context.Context, trace.Span) {
	ctx := t.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return t.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, route),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.HTTPRoute(route),
			semconv.URLPath(r.URL.Path),
		),
	)
}

// EndServerSpan records the response status and ends span.
func EndServerSpan(span trace.Span, statusCode int) {
	span.SetAttributes(semconv.HTTPResponseStatusCode(statusCode))
	if statusCode >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	}
	span.End()
}

// StartClientSpan starts a client span for an outbound call of the given kind
// and, when tracing is enabled, injects the trace context into req's headers.
// The returned request carries the span context.
func (t *Tracing) StartClientSpan(req *http.Request, kind string) (*http.Request, trace.Span) {
	ctx, span := t.tracer.Start(req.Context(), "relay."+kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("relay.kind", kind),
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(redactURL(req.URL)),
			semconv.ServerAddress(req.URL.Hostname()),
		),
	)
	req = req.WithContext(ctx)
	if t.enabled {
		t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))
	}
	return req, span
}

// EndClientSpan records the outcome of an outbound call and ends span.
func EndClientSpan(span trace.Span, statusCode int, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetAttributes(semconv.HTTPResponseStatusCode(statusCode))
		if statusCode < 200 || statusCode >= 300 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		}
	}
	span.End()
}

// redactURL drops userinfo and the query string; both may carry credentials.
func redactURL(u *url.URL) string {
	c := *u
	c.User = nil
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
