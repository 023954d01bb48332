package ports

import (
	"context"
	"time"
)

// FlushKind tells why a snapshot save was dispatched.
type FlushKind string

const (
	FlushAutomatic FlushKind = "automatic"
	FlushCritical  FlushKind = "critical"
	FlushTeardown  FlushKind = "teardown"
)

// MetricsExporter exports hunt metrics to an external observability system.
type MetricsExporter interface {
	// RecordChecks records a change of checks on a hunt.
	RecordChecks(ctx context.Context, game, method string, delta int)
	// RecordFlush records the outcome of a dispatched save.
	RecordFlush(ctx context.Context, kind FlushKind, duration time.Duration, err error)
	// RecordFlushDropped records an automatic save dropped by the throttle.
	RecordFlushDropped(ctx context.Context)
	// RecordCompletion records a hunt written to the collection.
	RecordCompletion(ctx context.Context, m *CompletionMetrics)
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}

// CompletionMetrics describes a completed hunt.
type CompletionMetrics struct {
	HuntID    string
	Game      string
	Method    string
	Checks    int64
	ElapsedMs int64
}
