package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/version"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds OpenTelemetry instruments for batch pipeline
// runs. A nil *PipelineMetrics is valid; all recording methods are
// no-ops on it, so callers never need nil checks.
type PipelineMetrics struct {
	batchesGenerated metric.Int64Counter
	batchesDelivered metric.Int64Counter
	batchesSkipped   metric.Int64Counter
	batchesFailed    metric.Int64Counter
	execDuration     metric.Float64Histogram
}

// NewPipelineMetrics creates pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	batchesGenerated, err := meter.Int64Counter("batches.generated",
		metric.WithDescription("Total number of batches submitted for execution"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batches.generated counter: %w", err)
	}

	batchesDelivered, err := meter.Int64Counter("batches.delivered",
		metric.WithDescription("Total number of batches delivered to the caller"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batches.delivered counter: %w", err)
	}

	batchesSkipped, err := meter.Int64Counter("batches.skipped",
		metric.WithDescription("Total number of batches dropped by a skip signal"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batches.skipped counter: %w", err)
	}

	batchesFailed, err := meter.Int64Counter("batches.failed",
		metric.WithDescription("Total number of batches dropped by an execution error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batches.failed counter: %w", err)
	}

	execDuration, err := meter.Float64Histogram("batch.exec.duration",
		metric.WithDescription("Duration of one batch's full action chain in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.exec.duration histogram: %w", err)
	}

	return &PipelineMetrics{
		batchesGenerated: batchesGenerated,
		batchesDelivered: batchesDelivered,
		batchesSkipped:   batchesSkipped,
		batchesFailed:    batchesFailed,
		execDuration:     execDuration,
	}, nil
}

// RecordGenerated counts one batch submitted for execution.
func (m *PipelineMetrics) RecordGenerated(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesGenerated.Add(ctx, 1)
}

// RecordDelivered counts one batch handed to the caller.
func (m *PipelineMetrics) RecordDelivered(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesDelivered.Add(ctx, 1)
}

// RecordSkipped counts one batch dropped by a skip signal.
func (m *PipelineMetrics) RecordSkipped(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesSkipped.Add(ctx, 1)
}

// RecordFailed counts one batch dropped by an execution error.
func (m *PipelineMetrics) RecordFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchesFailed.Add(ctx, 1)
}

// ObserveExecution records the duration of one batch's action chain.
func (m *PipelineMetrics) ObserveExecution(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.execDuration.Record(ctx, d.Seconds())
}
