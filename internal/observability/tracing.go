// Package observability provides OpenTelemetry tracing, Prometheus metrics
// and audit logging for vendortwin.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every vendortwin span.
const TracerName = "github.com/efebarandurmaz/vendortwin"

// TracingConfig selects where spans go. An empty OTLPEndpoint keeps the
// global no-op provider, so spans cost nothing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port of an OTLP gRPC collector
	SampleRate     float64
}

func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "vendortwin",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider owns the SDK provider when one was installed.
type TracerProvider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// InitTracing installs an OTLP exporting provider as the global one.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return &TracerProvider{sdk: sdk, tracer: sdk.Tracer(TracerName)}, nil
}

func serviceResource(cfg *TracingConfig) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	return res, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return tp.sdk.Shutdown(ctx)
}

func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

const (
	SpanKindSimulation  = "simulation"
	SpanKindLoad        = "load"
	SpanKindMaintenance = "maintenance"
)

// startSpan resolves the tracer per call so tests can swap the global
// provider.
func startSpan(ctx context.Context, name, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("vendortwin.span.kind", kind))
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

func StartSimulationSpan(ctx context.Context, vendorKey string, hours float64) (context.Context, trace.Span) {
	return startSpan(ctx, "simulation.run", SpanKindSimulation,
		attribute.String("vendor.identity_key", vendorKey),
		attribute.Float64("simulation.duration_hours", hours),
	)
}

// RecordSimulationResult attaches the component scores.
func RecordSimulationResult(span trace.Span, serviceCount int, operational, financial, compliance, overall float64) {
	span.SetAttributes(
		attribute.Int("simulation.service_count", serviceCount),
		attribute.Float64("simulation.operational_score", operational),
		attribute.Float64("simulation.financial_score", financial),
		attribute.Float64("simulation.compliance_score", compliance),
		attribute.Float64("simulation.overall_score", overall),
	)
}

// StartLoadSpan covers one loader batch of the given document kind.
func StartLoadSpan(ctx context.Context, kind string, entries int) (context.Context, trace.Span) {
	return startSpan(ctx, "load."+kind, SpanKindLoad, attribute.Int("load.entries", entries))
}

func RecordLoadResult(span trace.Span, nodes, edges, skipped int) {
	span.SetAttributes(
		attribute.Int("load.nodes", nodes),
		attribute.Int("load.edges", edges),
		attribute.Int("load.skipped", skipped),
	)
}

// StartMaintenanceSpan covers the merge pass over one node label.
func StartMaintenanceSpan(ctx context.Context, label string, dryRun bool) (context.Context, trace.Span) {
	return startSpan(ctx, "maintenance."+label, SpanKindMaintenance, attribute.Bool("maintenance.dry_run", dryRun))
}

// RecordMaintenanceResult marks the span failed while duplicate groups
// remain.
func RecordMaintenanceResult(span trace.Span, groups, merged, remaining int) {
	span.SetAttributes(
		attribute.Int("maintenance.groups", groups),
		attribute.Int("maintenance.merged", merged),
		attribute.Int("maintenance.remaining", remaining),
	)
	if remaining > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d duplicate groups remain", remaining))
	}
}

func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
