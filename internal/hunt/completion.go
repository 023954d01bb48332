package hunt

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

// CompletionWorkflow writes completed hunts into the collection store.
type CompletionWorkflow struct {
	store   ports.CollectionStore
	clock   Clock
	newID   func() string
	metrics ports.MetricsExporter
	logger  *slog.Logger
}

type CompletionOption func(*CompletionWorkflow)

func WithCompletionClock(c Clock) CompletionOption {
	return func(w *CompletionWorkflow) { w.clock = c }
}

func WithEntryIDGenerator(fn func() string) CompletionOption {
	return func(w *CompletionWorkflow) { w.newID = fn }
}

func WithCompletionMetrics(m ports.MetricsExporter) CompletionOption {
	return func(w *CompletionWorkflow) { w.metrics = m }
}

func WithCompletionLogger(l *slog.Logger) CompletionOption {
	return func(w *CompletionWorkflow) { w.logger = l }
}

func NewCompletionWorkflow(store ports.CollectionStore, opts ...CompletionOption) *CompletionWorkflow {
	w := &CompletionWorkflow{
		store:   store,
		clock:   SystemClock(),
		newID:   func() string { return uuid.New().String() },
		metrics: discardMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Complete appends entry to the collection record of pokemon, creating the
// record when none exists. The entry gets a fresh id. Existing sub-entries
// are written back unchanged.
func (w *CompletionWorkflow) Complete(ctx context.Context, pokemon domain.PokemonRef, entry domain.CaughtEntry) (domain.CaughtEntry, error) {
	if pokemon.Key == "" {
		return domain.CaughtEntry{}, fmt.Errorf("hunt %q has no pokemon: %w", entry.HuntID, domain.ErrMissingPokemon)
	}

	existing, err := w.store.GetEntry(ctx, pokemon.Key)
	if err != nil {
		return domain.CaughtEntry{}, fmt.Errorf("failed to get collection entry: %w", err)
	}

	entry.ID = w.newID()
	now := w.clock.Now().UTC()

	var record *domain.CollectionEntry
	if existing == nil {
		record = &domain.CollectionEntry{
			Key:       pokemon.Key,
			Pokemon:   pokemon,
			Entries:   []domain.CaughtEntry{entry},
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else {
		updated := *existing
		updated.Entries = append(slices.Clone(existing.Entries), entry)
		updated.UpdatedAt = now
		record = &updated
	}

	if err := w.store.PutEntry(ctx, pokemon.Key, record); err != nil {
		return domain.CaughtEntry{}, fmt.Errorf("failed to put collection entry: %w", err)
	}

	w.metrics.RecordCompletion(ctx, &ports.CompletionMetrics{
		HuntID:    entry.HuntID,
		Game:      entry.Game,
		Method:    entry.Method,
		Checks:    int64(entry.Checks),
		ElapsedMs: entry.ElapsedMs,
	})
	w.logger.Debug("collection entry written",
		slog.String("key", pokemon.Key),
		slog.Int("entries", len(record.Entries)),
	)
	return entry, nil
}
