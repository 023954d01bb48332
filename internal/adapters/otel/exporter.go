package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

const (
	serviceName    = "shinyhunt"
	serviceVersion = "1.0.0"
)

// Exporter exports hunt metrics to an OTEL Collector.
type Exporter struct {
	provider         *sdkmetric.MeterProvider
	meter            metric.Meter
	checks           metric.Int64UpDownCounter
	flushes          metric.Int64Counter
	flushDuration    metric.Float64Histogram
	flushesDropped   metric.Int64Counter
	completions      metric.Int64Counter
	checksPerHunt    metric.Int64Histogram
	huntDurationHist metric.Float64Histogram
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	checks, err := meter.Int64UpDownCounter(
		"shinyhunt_checks_total",
		metric.WithDescription("Net checks recorded on live hunts"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating checks counter: %w", err)
	}

	flushes, err := meter.Int64Counter(
		"shinyhunt_snapshot_saves_total",
		metric.WithDescription("Snapshot saves dispatched to the backend"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating saves counter: %w", err)
	}

	flushDuration, err := meter.Float64Histogram(
		"shinyhunt_snapshot_save_duration_seconds",
		metric.WithDescription("Snapshot save latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating save duration histogram: %w", err)
	}

	flushesDropped, err := meter.Int64Counter(
		"shinyhunt_snapshot_saves_dropped_total",
		metric.WithDescription("Automatic saves dropped by the throttle"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped saves counter: %w", err)
	}

	completions, err := meter.Int64Counter(
		"shinyhunt_hunts_completed_total",
		metric.WithDescription("Hunts written to the collection"),
		metric.WithUnit("{hunt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating completions counter: %w", err)
	}

	checksPerHunt, err := meter.Int64Histogram(
		"shinyhunt_hunt_checks",
		metric.WithDescription("Checks per completed hunt"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating checks histogram: %w", err)
	}

	huntDurationHist, err := meter.Float64Histogram(
		"shinyhunt_hunt_duration_seconds",
		metric.WithDescription("Active hunting time per completed hunt in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Exporter{
		provider:         provider,
		meter:            meter,
		checks:           checks,
		flushes:          flushes,
		flushDuration:    flushDuration,
		flushesDropped:   flushesDropped,
		completions:      completions,
		checksPerHunt:    checksPerHunt,
		huntDurationHist: huntDurationHist,
	}, nil
}

func (e *Exporter) RecordChecks(ctx context.Context, game, method string, delta int) {
	e.checks.Add(ctx, int64(delta), metric.WithAttributes(
		attribute.String("game", game),
		attribute.String("method", method),
	))
}

func (e *Exporter) RecordFlush(ctx context.Context, kind ports.FlushKind, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	opt := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	)
	e.flushes.Add(ctx, 1, opt)
	e.flushDuration.Record(ctx, d.Seconds(), opt)
}

func (e *Exporter) RecordFlushDropped(ctx context.Context) {
	e.flushesDropped.Add(ctx, 1)
}

// RecordCompletion records a hunt written to the collection.
func (e *Exporter) RecordCompletion(ctx context.Context, m *ports.CompletionMetrics) {
	opt := metric.WithAttributes(
		attribute.String("game", m.Game),
		attribute.String("method", m.Method),
	)
	e.completions.Add(ctx, 1, opt)
	e.checksPerHunt.Record(ctx, m.Checks, opt)
	e.huntDurationHist.Record(ctx, float64(m.ElapsedMs)/1000, opt)
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
