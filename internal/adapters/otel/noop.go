package otel

import (
	"context"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordChecks(ctx context.Context, game, method string, delta int) {}

func (e *NoOpExporter) RecordFlush(ctx context.Context, kind ports.FlushKind, d time.Duration, err error) {
}

func (e *NoOpExporter) RecordFlushDropped(ctx context.Context) {}

func (e *NoOpExporter) RecordCompletion(ctx context.Context, m *ports.CompletionMetrics) {}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
