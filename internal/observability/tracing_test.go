package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()
	if cfg.ServiceName != "vendortwin" {
		t.Fatalf("expected service name 'vendortwin', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Fatalf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, &TracingConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestSimulationSpan(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSimulationSpan(context.Background(), "stripe", 4)
	RecordSimulationResult(span, 2, 0.2, 0.1, 0, 0.115)
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "simulation.run" {
		t.Errorf("expected simulation.run, got %s", spans[0].Name())
	}
	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "simulation.service_count" && attr.Value.AsInt64() == 2 {
			found = true
		}
	}
	if !found {
		t.Error("expected simulation.service_count attribute")
	}
}

func TestMaintenanceSpan_RemainingIsError(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartMaintenanceSpan(context.Background(), "vendor", false)
	RecordMaintenanceResult(span, 3, 4, 1)
	span.End()

	if got := rec.Ended()[0].Status().Code; got != codes.Error {
		t.Errorf("expected error status, got %v", got)
	}
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartLoadSpan(context.Background(), "dependencies", 3)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	s := rec.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "boom" {
		t.Errorf("expected error status 'boom', got %v %q", s.Status().Code, s.Status().Description)
	}
}

func TestSamplerFor(t *testing.T) {
	cases := map[float64]string{
		1:    "AlwaysOnSampler",
		2:    "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
		0.25: "TraceIDRatioBased{0.25}",
	}
	for rate, want := range cases {
		if got := samplerFor(rate).Description(); got != want {
			t.Errorf("rate %v: expected %s, got %s", rate, want, got)
		}
	}
}
