package hunt

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// DefaultToggleDebounce collapses double-fired pause/resume requests.
const DefaultToggleDebounce = 500 * time.Millisecond

// Completer writes a finalized hunt into the collection.
type Completer interface {
	Complete(ctx context.Context, pokemon domain.PokemonRef, entry domain.CaughtEntry) (domain.CaughtEntry, error)
}

// Registry owns the live hunts and applies commands to them. Every
// command runs under a single lock, so a mutation is atomic with respect
// to all other activity.
type Registry struct {
	mu         sync.Mutex
	hunts      map[string]*domain.Hunt
	order      []string
	lastToggle map[string]time.Time

	timers    *TimerScheduler
	odds      ports.OddsEngine
	completer Completer
	clock     Clock
	debounce  time.Duration
	newID     func() string
	metrics   ports.MetricsExporter
	logger    *slog.Logger

	obsMu     sync.RWMutex
	observers []MutationObserver
}

type RegistryOption func(*Registry)

func WithClock(c Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

func WithToggleDebounce(d time.Duration) RegistryOption {
	return func(r *Registry) { r.debounce = d }
}

func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) { r.newID = fn }
}

func WithRegistryMetrics(m ports.MetricsExporter) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(timers *TimerScheduler, odds ports.OddsEngine, completer Completer, opts ...RegistryOption) *Registry {
	r := &Registry{
		hunts:      make(map[string]*domain.Hunt),
		lastToggle: make(map[string]time.Time),
		timers:     timers,
		odds:       odds,
		completer:  completer,
		clock:      SystemClock(),
		debounce:   DefaultToggleDebounce,
		newID:      func() string { return uuid.New().String() },
		metrics:    discardMetrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers an observer for mutations.
func (r *Registry) Subscribe(o MutationObserver) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Apply runs cmd against the hunt id. Start ignores id and assigns a new
// one. Observers are notified after the registry lock is released.
func (r *Registry) Apply(ctx context.Context, id string, cmd Command) (Result, error) {
	if cmd == nil {
		return Result{}, domain.ErrUnknownCommand
	}

	r.mu.Lock()
	res, err := r.apply(ctx, id, cmd)
	r.mu.Unlock()
	if err != nil {
		return res, err
	}

	if res.Changed {
		r.notify(ctx, Mutation{HuntID: res.Hunt.ID, Kind: res.Kind, Critical: res.Kind.Critical()})
	}
	return res, nil
}

func (r *Registry) apply(ctx context.Context, id string, cmd Command) (Result, error) {
	if c, ok := cmd.(Start); ok {
		return r.start(c), nil
	}

	h, ok := r.hunts[id]
	if !ok {
		return Result{Kind: cmd.Kind()}, fmt.Errorf("%s %q: %w", cmd.Kind(), id, domain.ErrHuntNotFound)
	}
	res := Result{Kind: cmd.Kind()}

	switch c := cmd.(type) {
	case Pause:
		res = r.setPaused(h, true, res)
	case Resume:
		res = r.setPaused(h, false, res)
	case TogglePause:
		res = r.setPaused(h, !h.Paused, res)

	case AddCheck:
		elapsed, anchor, err := r.timers.CloseInterval(id)
		if err != nil {
			return res, fmt.Errorf("failed to close interval of %q: %w", id, err)
		}
		res.CreditedMs = h.AddCheck(elapsed.Milliseconds(), anchor)
		res.Changed = true
		r.metrics.RecordChecks(ctx, h.Game, h.Method, h.Increment)

	case DecreaseCheck:
		before := h.Checks
		res.Changed = h.DecreaseCheck()
		if res.Changed {
			r.metrics.RecordChecks(ctx, h.Game, h.Method, h.Checks-before)
		}

	case EditDetails:
		h.EditDetails(c.Game, c.Method, c.Pokemon, c.Modifiers, r.odds.Compute(c.Game, c.Method, c.Modifiers))
		if c.Phase != nil {
			h.Phase = *c.Phase
		}
		res.Changed = true

	case OverrideSettings:
		if err := h.OverrideSettings(c.Checks, c.TotalElapsedMs, c.Increment); err != nil {
			return res, err
		}
		res.Changed = true

	case Reset:
		_, anchor, err := r.timers.CloseInterval(id)
		if err != nil {
			return res, fmt.Errorf("failed to restart interval of %q: %w", id, err)
		}
		h.Reset(anchor)
		res.Changed = true

	case Complete:
		return r.complete(ctx, h, c)

	case Delete:
		final := h.Clone()
		final.Status = domain.StatusDeleted
		r.remove(id)
		r.logger.Info("hunt deleted", slog.String("hunt_id", id))
		return Result{Kind: KindDelete, Hunt: final, Changed: true}, nil

	default:
		return res, fmt.Errorf("%T: %w", cmd, domain.ErrUnknownCommand)
	}

	res.Hunt = h.Clone()
	return res, nil
}

func (r *Registry) start(c Start) Result {
	id := r.newID()
	anchor := r.timers.Start(id)
	h := domain.NewHunt(id, c.Pokemon, c.Game, c.Ball, c.Mark, c.Method, c.Notes, c.Modifiers,
		r.odds.Compute(c.Game, c.Method, c.Modifiers), anchor)
	h.Phase = c.Phase

	r.hunts[id] = h
	r.order = append(r.order, id)

	r.logger.Info("hunt started",
		slog.String("hunt_id", id),
		slog.String("pokemon", c.Pokemon.Key),
		slog.String("game", c.Game),
		slog.String("method", c.Method),
	)
	return Result{Kind: KindStart, Hunt: h.Clone(), Changed: true}
}

func (r *Registry) setPaused(h *domain.Hunt, paused bool, res Result) Result {
	now := r.clock.Now()
	if last, ok := r.lastToggle[h.ID]; ok && now.Sub(last) < r.debounce {
		r.logger.Debug("toggle debounced", slog.String("hunt_id", h.ID))
		res.Debounced = true
		res.Hunt = h.Clone()
		return res
	}
	if h.Paused == paused {
		res.Hunt = h.Clone()
		return res
	}

	var err error
	if paused {
		err = r.timers.Pause(h.ID)
	} else {
		err = r.timers.Resume(h.ID)
	}
	if err != nil {
		// Live hunts always own a timer; recreate it rather than fail.
		r.timers.Restore(h.ID, TimerState{IntervalStart: now, SegmentStart: now, Running: !paused})
	}

	h.SetPaused(paused)
	r.lastToggle[h.ID] = now
	res.Changed = true
	res.Hunt = h.Clone()

	r.logger.Info("hunt status changed",
		slog.String("hunt_id", h.ID),
		slog.String("status", string(h.Status)),
	)
	return res
}

// complete holds the registry lock across the collection write so the
// record and the removal are atomic. On failure the hunt is untouched.
func (r *Registry) complete(ctx context.Context, h *domain.Hunt, c Complete) (Result, error) {
	entry := h.Finalize(r.clock.Now(), c.Ball, c.Mark, c.Notes)

	saved, err := r.completer.Complete(ctx, h.Pokemon, entry)
	if err != nil {
		r.logger.Error("hunt completion failed",
			slog.String("hunt_id", h.ID),
			slog.Any("error", err),
		)
		return Result{Kind: KindComplete, Hunt: h.Clone()}, fmt.Errorf("failed to complete hunt %q: %w", h.ID, err)
	}

	final := h.Clone()
	final.Status = domain.StatusCompleted
	final.Paused = false
	final.Ball, final.Mark, final.Notes = c.Ball, c.Mark, c.Notes
	r.remove(h.ID)

	r.logger.Info("hunt completed",
		slog.String("hunt_id", h.ID),
		slog.String("entry_id", saved.ID),
		slog.Int("checks", saved.Checks),
	)
	return Result{Kind: KindComplete, Hunt: final, Changed: true, Entry: &saved}, nil
}

func (r *Registry) remove(id string) {
	delete(r.hunts, id)
	delete(r.lastToggle, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.timers.Stop(id)
}

func (r *Registry) notify(ctx context.Context, m Mutation) {
	r.obsMu.RLock()
	observers := slices.Clone(r.observers)
	r.obsMu.RUnlock()
	for _, o := range observers {
		o.Observe(ctx, m)
	}
}

// Get returns a copy of a live hunt.
func (r *Registry) Get(id string) (domain.Hunt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hunts[id]
	if !ok {
		return domain.Hunt{}, false
	}
	return h.Clone(), true
}

// List returns copies of the live hunts in creation order.
func (r *Registry) List() []domain.Hunt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Hunt, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.hunts[id].Clone())
	}
	return out
}

// Len returns the number of live hunts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hunts)
}

// Elapsed returns the live time of a hunt's open interval.
func (r *Registry) Elapsed(id string) (time.Duration, bool) {
	return r.timers.Elapsed(id)
}

// Watch streams the interval seconds of a hunt. See TimerScheduler.Watch.
func (r *Registry) Watch(ctx context.Context, id string) (<-chan int, error) {
	return r.timers.Watch(ctx, id)
}

// Snapshot captures the full registry state for persistence.
func (r *Registry) Snapshot() *domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := domain.NewSnapshot()
	for _, id := range r.order {
		h := r.hunts[id]
		snap.Sessions = append(snap.Sessions, h.Clone())
		if st, ok := r.timers.State(id); ok {
			snap.TimerAnchors[id] = st.SegmentStart
			snap.LastCheckAnchors[id] = st.IntervalStart
			snap.AccumulatedElapsedMs[id] = st.Accumulated.Milliseconds()
		}
		if h.Paused {
			snap.PausedIDs[id] = true
		}
		snap.Increments[id] = h.Increment
	}
	return snap
}

// Restore replaces the registry content with a snapshot. Sessions marked
// paused in the snapshot restore with a stopped timer; any other session
// resumes with a fresh running segment. Terminal and duplicate sessions
// are skipped. It returns the number of restored hunts.
func (r *Registry) Restore(snap *domain.Snapshot) int {
	snap.Normalize()
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		r.timers.Stop(id)
	}
	r.hunts = make(map[string]*domain.Hunt)
	r.order = nil
	r.lastToggle = make(map[string]time.Time)

	for _, s := range snap.Sessions {
		if s.ID == "" || (s.Status != "" && !s.Status.Live()) {
			continue
		}
		if _, dup := r.hunts[s.ID]; dup {
			continue
		}
		h := s.Clone()
		if inc, ok := snap.Increments[h.ID]; ok && inc >= 1 {
			h.Increment = inc
		}
		h.Increment = max(1, h.Increment)
		h.Checks = max(0, h.Checks)
		h.TotalElapsedMs = max(0, h.TotalElapsedMs)
		if h.Modifiers == nil {
			h.Modifiers = domain.Modifiers{}
		}
		if anchor, ok := snap.LastCheckAnchors[h.ID]; ok {
			h.LastCheckAnchor = anchor
		}
		paused := snap.PausedIDs[h.ID]
		h.Paused = paused
		h.Status = domain.StatusActive
		if paused {
			h.Status = domain.StatusPaused
		}
		h.Odds = r.odds.Compute(h.Game, h.Method, h.Modifiers)

		st := TimerState{
			IntervalStart: h.LastCheckAnchor,
			SegmentStart:  snap.TimerAnchors[h.ID],
			Accumulated:   time.Duration(snap.AccumulatedElapsedMs[h.ID]) * time.Millisecond,
			Running:       !paused,
		}
		if st.Running {
			st.SegmentStart = now
		}
		r.timers.Restore(h.ID, st)

		r.hunts[h.ID] = &h
		r.order = append(r.order, h.ID)
	}
	return len(r.hunts)
}
