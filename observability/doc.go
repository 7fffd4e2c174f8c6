// Package observability provides OpenTelemetry tracing and metrics
// integration for batch pipeline runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("trainer"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("trainer"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewPipelineMetrics(observability.Meter("trainer"))
//	// attach via pipeline.RunConfig{Metrics: metrics}
package observability
