package hunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

const (
	// DefaultSaveThrottle is the minimum spacing of automatic saves.
	DefaultSaveThrottle = 500 * time.Millisecond
	// DefaultTeardownTimeout bounds the blocking save on exit.
	DefaultTeardownTimeout = 3 * time.Second
)

// Snapshotter is the registry as seen by the coordinator.
type Snapshotter interface {
	Snapshot() *domain.Snapshot
	Restore(snap *domain.Snapshot) int
}

// Coordinator reconciles registry mutations with a persistence backend.
//
// Critical mutations flush the whole registry immediately. Other
// mutations request an automatic flush, which is dropped (not queued) if
// any flush was dispatched less than the throttle ago. Saves run in the
// background and are never cancelled; each carries an increasing revision
// so a late stale save cannot overwrite a newer one. Failures are logged
// and surfaced through the notifier, and local state is never rolled back.
type Coordinator struct {
	backend  ports.PersistenceBackend
	registry Snapshotter

	clock           Clock
	throttle        time.Duration
	teardownTimeout time.Duration
	notifier        ports.Notifier
	metrics         ports.MetricsExporter
	logger          *slog.Logger

	mu        sync.Mutex
	lastFlush time.Time
	flushed   bool
	revision  int64

	inflight sync.WaitGroup
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorClock(c Clock) CoordinatorOption {
	return func(co *Coordinator) { co.clock = c }
}

func WithSaveThrottle(d time.Duration) CoordinatorOption {
	return func(co *Coordinator) { co.throttle = d }
}

func WithTeardownTimeout(d time.Duration) CoordinatorOption {
	return func(co *Coordinator) { co.teardownTimeout = d }
}

func WithNotifier(n ports.Notifier) CoordinatorOption {
	return func(co *Coordinator) { co.notifier = n }
}

func WithCoordinatorMetrics(m ports.MetricsExporter) CoordinatorOption {
	return func(co *Coordinator) { co.metrics = m }
}

func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(co *Coordinator) { co.logger = l }
}

func NewCoordinator(backend ports.PersistenceBackend, registry Snapshotter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		backend:         backend,
		registry:        registry,
		clock:           SystemClock(),
		throttle:        DefaultSaveThrottle,
		teardownTimeout: DefaultTeardownTimeout,
		notifier:        discardNotifier{},
		metrics:         discardMetrics{},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe implements MutationObserver.
func (c *Coordinator) Observe(ctx context.Context, m Mutation) {
	if m.Critical {
		c.FlushNow(ctx)
		return
	}
	c.RequestFlush(ctx)
}

// RequestFlush dispatches an automatic save of the current registry unless
// a save was dispatched within the throttle window. It reports whether a
// save was dispatched.
func (c *Coordinator) RequestFlush(ctx context.Context) bool {
	c.mu.Lock()
	now := c.clock.Now()
	if c.flushed && now.Sub(c.lastFlush) < c.throttle {
		c.mu.Unlock()
		c.metrics.RecordFlushDropped(ctx)
		c.logger.Debug("automatic save dropped by throttle")
		return false
	}
	snap := c.prepareLocked(now)
	c.mu.Unlock()

	c.dispatch(ctx, ports.FlushAutomatic, snap)
	return true
}

// FlushNow dispatches a save of the whole registry, bypassing the throttle.
func (c *Coordinator) FlushNow(ctx context.Context) {
	c.mu.Lock()
	snap := c.prepareLocked(c.clock.Now())
	c.mu.Unlock()

	c.dispatch(ctx, ports.FlushCritical, snap)
}

func (c *Coordinator) prepareLocked(now time.Time) *domain.Snapshot {
	c.revision++
	c.lastFlush = now
	c.flushed = true
	snap := c.registry.Snapshot()
	snap.Revision = c.revision
	return snap
}

func (c *Coordinator) dispatch(ctx context.Context, kind ports.FlushKind, snap *domain.Snapshot) {
	ctx = context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		start := time.Now()
		err := c.backend.Save(ctx, snap)
		c.metrics.RecordFlush(ctx, kind, time.Since(start), err)
		if err != nil {
			c.logger.Error("snapshot save failed",
				slog.String("kind", string(kind)),
				slog.Int64("revision", snap.Revision),
				slog.Any("error", err),
			)
			c.notifier.Notify(ctx, ports.Notification{
				Level:   ports.NotificationError,
				Message: "hunts could not be saved; local changes are kept",
				Err:     err,
			})
			return
		}
		c.logger.Debug("snapshot saved",
			slog.String("kind", string(kind)),
			slog.Int64("revision", snap.Revision),
			slog.Int("sessions", len(snap.Sessions)),
		)
	}()
}

// Wait blocks until every dispatched save has finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// WaitTimeout waits at most d for dispatched saves to finish. It reports
// whether they all did.
func (c *Coordinator) WaitTimeout(d time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.waitContext(ctx)
}

func (c *Coordinator) waitContext(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Load restores the registry from the backend. Every loaded hunt is forced
// into Paused, whatever its persisted pause flag says, so no timer resumes
// across a reload. It returns the number of restored hunts.
func (c *Coordinator) Load(ctx context.Context) (int, error) {
	snap, err := c.backend.Load(ctx)
	if errors.Is(err, domain.ErrCorruptSnapshot) {
		c.logger.Warn("stored hunts unreadable, starting empty", slog.Any("error", err))
		c.notifier.Notify(ctx, ports.Notification{
			Level:   ports.NotificationWarning,
			Message: "saved hunts could not be read; starting with no hunts",
			Err:     err,
		})
		snap, err = nil, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load hunts: %w", err)
	}
	if snap == nil {
		snap = domain.NewSnapshot()
	}
	snap.Normalize()
	for _, s := range snap.Sessions {
		snap.PausedIDs[s.ID] = true
	}

	n := c.registry.Restore(snap)

	c.mu.Lock()
	if snap.Revision > c.revision {
		c.revision = snap.Revision
	}
	c.mu.Unlock()

	c.logger.Info("hunts loaded", slog.Int("count", n), slog.Int64("revision", snap.Revision))
	return n, nil
}

// Teardown performs one best-effort blocking save of the registry and waits
// for in-flight saves, both bounded by the teardown timeout. Failures are
// not reported; the next load recovers from whatever was stored.
func (c *Coordinator) Teardown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.teardownTimeout)
	defer cancel()

	c.mu.Lock()
	snap := c.prepareLocked(c.clock.Now())
	c.mu.Unlock()

	start := time.Now()
	err := c.backend.Save(ctx, snap)
	c.metrics.RecordFlush(ctx, ports.FlushTeardown, time.Since(start), err)
	if err != nil {
		c.logger.Debug("teardown save failed", slog.Any("error", err))
	}

	if !c.waitContext(ctx) {
		c.logger.Debug("teardown gave up on in-flight saves")
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, ports.Notification) {}

type discardMetrics struct{}

func (discardMetrics) RecordChecks(context.Context, string, string, int)                  {}
func (discardMetrics) RecordFlush(context.Context, ports.FlushKind, time.Duration, error) {}
func (discardMetrics) RecordFlushDropped(context.Context)                                 {}
func (discardMetrics) RecordCompletion(context.Context, *ports.CompletionMetrics)         {}
func (discardMetrics) Close(context.Context) error                                        { return nil }
