package hunt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubOdds returns 1/4096 for any chosen game and method, and a chain
// curve for the "chain" method.
type stubOdds struct{}

func (stubOdds) Compute(game, method string, modifiers domain.Modifiers) domain.Odds {
	if game == "" || method == "" {
		return domain.UnavailableOdds()
	}
	if method == "chain" {
		return domain.ProgressiveOdds(func(p int) float64 {
			return stubOdds{}.ComputeProgressive(game, method, modifiers, p)
		})
	}
	return domain.FixedOdds(4096)
}

func (stubOdds) ComputeProgressive(game, method string, modifiers domain.Modifiers, progress int) float64 {
	if game == "" || method == "" {
		return 0
	}
	if method == "chain" && progress >= 40 {
		return 99
	}
	return 4096
}

// memoryBackend stores snapshots as JSON, honoring revisions the way the
// real backends do.
type memoryBackend struct {
	mu     sync.Mutex
	stored []byte
	rev    int64
	saves  []*domain.Snapshot

	LoadErr  error
	SaveFunc func(ctx context.Context, snap *domain.Snapshot) error
}

func (b *memoryBackend) Load(ctx context.Context) (*domain.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	if b.stored == nil {
		return nil, nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(b.stored, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorruptSnapshot, err)
	}
	return &snap, nil
}

func (b *memoryBackend) Save(ctx context.Context, snap *domain.Snapshot) error {
	if b.SaveFunc != nil {
		if err := b.SaveFunc(ctx, snap); err != nil {
			return err
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves = append(b.saves, snap)
	if snap.Revision <= b.rev {
		return nil
	}
	b.stored = data
	b.rev = snap.Revision
	return nil
}

func (b *memoryBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saves)
}

func (b *memoryBackend) revisions() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	revs := make([]int64, len(b.saves))
	for i, s := range b.saves {
		revs[i] = s.Revision
	}
	return revs
}

// memoryCollection is an in-memory CollectionStore. PutErr, when set, makes
// every write fail.
type memoryCollection struct {
	mu      sync.Mutex
	entries map[string][]byte
	PutErr  error
}

func newMemoryCollection() *memoryCollection {
	return &memoryCollection{entries: make(map[string][]byte)}
}

func (m *memoryCollection) GetEntry(ctx context.Context, key string) (*domain.CollectionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	var e domain.CollectionEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *memoryCollection) PutEntry(ctx context.Context, key string, entry *domain.CollectionEntry) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = data
	return nil
}

func (m *memoryCollection) List(ctx context.Context) ([]*domain.CollectionEntry, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	slices.Sort(keys)

	out := make([]*domain.CollectionEntry, 0, len(keys))
	for _, k := range keys {
		e, err := m.GetEntry(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []ports.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note ports.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, note)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items)
}

type testEnv struct {
	clock       *fakeClock
	timers      *TimerScheduler
	registry    *Registry
	coordinator *Coordinator
	backend     *memoryBackend
	store       *memoryCollection
	notifier    *recordingNotifier
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, &memoryBackend{}, newMemoryCollection(), newFakeClock())
}

func newTestEnvWith(t *testing.T, backend *memoryBackend, store *memoryCollection, clock *fakeClock) *testEnv {
	t.Helper()

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("hunt-%d", seq)
	}
	entrySeq := 0
	newEntryID := func() string {
		entrySeq++
		return fmt.Sprintf("entry-%d", entrySeq)
	}

	timers := NewTimerScheduler(clock)
	completion := NewCompletionWorkflow(store,
		WithCompletionClock(clock),
		WithEntryIDGenerator(newEntryID),
		WithCompletionLogger(discardLogger()),
	)
	registry := NewRegistry(timers, stubOdds{}, completion,
		WithClock(clock),
		WithIDGenerator(newID),
		WithRegistryLogger(discardLogger()),
	)
	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(backend, registry,
		WithCoordinatorClock(clock),
		WithNotifier(notifier),
		WithCoordinatorLogger(discardLogger()),
	)
	registry.Subscribe(coordinator)

	t.Cleanup(func() {
		coordinator.Wait()
		timers.StopAll()
	})

	return &testEnv{
		clock:       clock,
		timers:      timers,
		registry:    registry,
		coordinator: coordinator,
		backend:     backend,
		store:       store,
		notifier:    notifier,
	}
}

func (e *testEnv) start(t *testing.T, key string) domain.Hunt {
	t.Helper()
	res, err := e.registry.Apply(context.Background(), "", Start{
		Pokemon: domain.PokemonRef{Key: key, Data: json.RawMessage(`{"name":"` + key + `"}`)},
		Game:    "sv",
		Method:  "masuda",
		Ball:    "poke",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return res.Hunt
}

func (e *testEnv) apply(t *testing.T, id string, cmd Command) Result {
	t.Helper()
	res, err := e.registry.Apply(context.Background(), id, cmd)
	if err != nil {
		t.Fatalf("%s failed: %v", cmd.Kind(), err)
	}
	return res
}
