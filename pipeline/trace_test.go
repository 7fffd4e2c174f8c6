package pipeline_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/batchkit/pipeline"
	"github.com/kbukum/batchkit/testutil"
)

func collectSpans(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return exporter, func() { otel.SetTracerProvider(prev) }
}

func spanCounts(exporter *tracetest.InMemoryExporter) map[string]int {
	counts := make(map[string]int)
	for _, s := range exporter.GetSpans() {
		counts[s.Name]++
	}
	return counts
}

func TestRunEmitsSpans(t *testing.T) {
	exporter, restore := collectSpans(t)
	defer restore()

	src := testutil.NewSliceSource(8)
	p := mustAppend(t, pipeline.New(testutil.NewRegistry(), src), "scale", []any{2.0}, nil)

	if err := p.Run(context.Background(), pipeline.RunConfig{BatchSize: 2, Prefetch: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	counts := spanCounts(exporter)
	if counts["pipeline.run"] != 1 {
		t.Errorf("pipeline.run spans = %d, want 1", counts["pipeline.run"])
	}
	if counts["batch.exec"] != 4 {
		t.Errorf("batch.exec spans = %d, want 4", counts["batch.exec"])
	}
}

func TestSinkEnqueueEmitsSpans(t *testing.T) {
	exporter, restore := collectSpans(t)
	defer restore()

	src := testutil.NewSliceSource(8)
	session := &testutil.MemorySession{}
	queue := testutil.NewMemoryQueue(4)

	p := mustAppend(t, pipeline.New(testutil.NewRegistry(), src), "scale", []any{2.0}, nil)
	p, err := p.PutIntoQueue(pipeline.SinkConfig{Session: session, Queue: queue})
	if err != nil {
		t.Fatalf("PutIntoQueue: %v", err)
	}

	if err := p.Run(context.Background(), pipeline.RunConfig{BatchSize: 2, Prefetch: 2}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := spanCounts(exporter)["sink.enqueue"]; got != 4 {
		t.Errorf("sink.enqueue spans = %d, want 4", got)
	}
}
