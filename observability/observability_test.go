package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("my-service")
	if cfg.ServiceName != "my-service" {
		t.Errorf("expected service name 'my-service', got %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected default endpoint, got %q", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Error("expected insecure default for development")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %v", cfg.SampleRate)
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("my-service")
	if cfg.ServiceName != "my-service" {
		t.Errorf("expected service name 'my-service', got %q", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected 15s interval, got %v", cfg.Interval)
	}
}

func TestNewPipelineMetrics(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")
	metrics, err := NewPipelineMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordGenerated(ctx)
	metrics.RecordDelivered(ctx)
	metrics.RecordSkipped(ctx)
	metrics.RecordFailed(ctx)
	metrics.ObserveExecution(ctx, 50*time.Millisecond)
}

func TestPipelineMetrics_NilReceiver(t *testing.T) {
	var metrics *PipelineMetrics
	ctx := context.Background()
	// All recording methods must be safe on a nil receiver.
	metrics.RecordGenerated(ctx)
	metrics.RecordDelivered(ctx)
	metrics.RecordSkipped(ctx)
	metrics.RecordFailed(ctx)
	metrics.ObserveExecution(ctx, time.Millisecond)
}

func TestTracer(t *testing.T) {
	tr := Tracer("test-tracer")
	if tr == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestMeter(t *testing.T) {
	m := Meter("test-meter")
	if m == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestStartSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), SpanPipelineRun)
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	defer span.End()

	if SpanFromContext(ctx) == nil {
		t.Error("expected span in context")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), SpanBatchExec)
	defer span.End()

	// Each supported type must not panic.
	SetSpanAttribute(ctx, AttrRunID, "run-1")
	SetSpanAttribute(ctx, AttrBatchIndex, 42)
	SetSpanAttribute(ctx, AttrDurationMs, int64(100))
	SetSpanAttribute(ctx, "ratio", 0.5)
	SetSpanAttribute(ctx, "done", true)
	SetSpanAttribute(ctx, "actions", []string{"a", "b"})
	// Unsupported types are silently ignored.
	SetSpanAttribute(ctx, "other", struct{}{})
}

func TestSetSpanAttributeNoSpan(t *testing.T) {
	// Must not panic without an active span.
	SetSpanAttribute(context.Background(), AttrRunID, "run-1")
}

func TestSetSpanError(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), SpanSinkEnqueue)
	defer span.End()
	SetSpanError(ctx, errors.New("enqueue refused"))
}

func TestSetSpanErrorNoSpan(t *testing.T) {
	SetSpanError(context.Background(), errors.New("no span"))
}
