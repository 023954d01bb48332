package hunt

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

func TestRegistry_Start(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	if h.ID != "hunt-1" {
		t.Errorf("ID = %q, want hunt-1", h.ID)
	}
	if h.Status != domain.StatusActive || h.Paused {
		t.Errorf("Status = %s paused=%v, want active", h.Status, h.Paused)
	}
	if h.Checks != 0 || h.Increment != 1 || h.TotalElapsedMs != 0 {
		t.Errorf("counters = %d/%d/%d, want 0/1/0", h.Checks, h.Increment, h.TotalElapsedMs)
	}
	if !h.StartedAt.Equal(env.clock.Now()) || !h.LastCheckAnchor.Equal(h.StartedAt) {
		t.Errorf("anchors = %v/%v, want %v", h.StartedAt, h.LastCheckAnchor, env.clock.Now())
	}
	if d, ok := h.CurrentOdds(); !ok || d != 4096 {
		t.Errorf("CurrentOdds = %v/%v, want 4096", d, ok)
	}
	if env.registry.Len() != 1 {
		t.Errorf("Len = %d, want 1", env.registry.Len())
	}
}

func TestRegistry_ChecksCreditActiveTime(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	for range 3 {
		env.clock.Advance(10 * time.Second)
		res := env.apply(t, h.ID, AddCheck{})
		if res.CreditedMs != 10000 {
			t.Errorf("CreditedMs = %d, want 10000", res.CreditedMs)
		}
	}

	got, _ := env.registry.Get(h.ID)
	if got.Checks != 3 {
		t.Errorf("Checks = %d, want 3", got.Checks)
	}
	if got.TotalElapsedMs != 30000 {
		t.Errorf("TotalElapsedMs = %d, want 30000", got.TotalElapsedMs)
	}
	if !got.LastCheckAnchor.Equal(env.clock.Now()) {
		t.Errorf("LastCheckAnchor = %v, want %v", got.LastCheckAnchor, env.clock.Now())
	}
}

func TestRegistry_PausedChecksCreditNothing(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	env.clock.Advance(4 * time.Second)
	env.apply(t, h.ID, Pause{})

	for range 5 {
		env.clock.Advance(time.Second)
		res := env.apply(t, h.ID, AddCheck{})
		if res.CreditedMs != 0 {
			t.Errorf("paused CreditedMs = %d, want 0", res.CreditedMs)
		}
	}

	got, _ := env.registry.Get(h.ID)
	if got.Checks != 5 {
		t.Errorf("Checks = %d, want 5", got.Checks)
	}
	if got.TotalElapsedMs != 0 {
		t.Errorf("TotalElapsedMs = %d, want 0", got.TotalElapsedMs)
	}
	if got.Status != domain.StatusPaused {
		t.Errorf("Status = %s, want paused", got.Status)
	}
}

func TestRegistry_PauseFreezesOpenInterval(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	env.clock.Advance(5 * time.Second)
	env.apply(t, h.ID, Pause{})
	env.clock.Advance(100 * time.Second)
	env.apply(t, h.ID, Resume{})
	env.clock.Advance(5 * time.Second)

	res := env.apply(t, h.ID, AddCheck{})
	if res.CreditedMs != 10000 {
		t.Errorf("CreditedMs = %d, want 10000", res.CreditedMs)
	}
}

func TestRegistry_PausedCheckRestartsInterval(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	env.clock.Advance(5 * time.Second)
	env.apply(t, h.ID, Pause{})
	env.apply(t, h.ID, AddCheck{})
	env.clock.Advance(time.Second)
	env.apply(t, h.ID, Resume{})
	env.clock.Advance(3 * time.Second)

	res := env.apply(t, h.ID, AddCheck{})
	if res.CreditedMs != 3000 {
		t.Errorf("CreditedMs = %d, want 3000", res.CreditedMs)
	}
}

func TestRegistry_DecreaseNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	res := env.apply(t, h.ID, DecreaseCheck{})
	if res.Changed {
		t.Error("decrease at zero must be a no-op")
	}
	if res.Hunt.Checks != 0 {
		t.Errorf("Checks = %d, want 0", res.Hunt.Checks)
	}

	env.apply(t, h.ID, OverrideSettings{Checks: 3, Increment: 5})
	res = env.apply(t, h.ID, DecreaseCheck{})
	if res.Hunt.Checks != 0 {
		t.Errorf("Checks = %d, want clamp to 0", res.Hunt.Checks)
	}
}

func TestRegistry_RandomSequencesKeepInvariants(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")
	rng := rand.New(rand.NewSource(7))

	cmds := []Command{AddCheck{}, DecreaseCheck{}, TogglePause{}, Reset{}, Pause{}, Resume{}}
	var lastElapsed int64
	for i := range 500 {
		env.clock.Advance(time.Duration(rng.Intn(1500)) * time.Millisecond)
		cmd := cmds[rng.Intn(len(cmds))]
		res := env.apply(t, h.ID, cmd)

		got := res.Hunt
		if got.Checks < 0 {
			t.Fatalf("step %d (%s): Checks = %d", i, cmd.Kind(), got.Checks)
		}
		if got.Increment < 1 {
			t.Fatalf("step %d (%s): Increment = %d", i, cmd.Kind(), got.Increment)
		}
		if got.Paused != (got.Status == domain.StatusPaused) {
			t.Fatalf("step %d (%s): paused=%v status=%s", i, cmd.Kind(), got.Paused, got.Status)
		}
		if cmd.Kind() != KindReset && got.TotalElapsedMs < lastElapsed {
			t.Fatalf("step %d (%s): elapsed went back from %d to %d", i, cmd.Kind(), lastElapsed, got.TotalElapsedMs)
		}
		lastElapsed = got.TotalElapsedMs
	}
}

func TestRegistry_OverrideSettings(t *testing.T) {
	tests := []struct {
		name    string
		cmd     OverrideSettings
		wantErr bool
	}{
		{name: "valid", cmd: OverrideSettings{Checks: 50, TotalElapsedMs: 90000, Increment: 3}},
		{name: "zero checks", cmd: OverrideSettings{Checks: 0, TotalElapsedMs: 0, Increment: 1}},
		{name: "negative checks", cmd: OverrideSettings{Checks: -1, Increment: 1}, wantErr: true},
		{name: "negative elapsed", cmd: OverrideSettings{Checks: 1, TotalElapsedMs: -5, Increment: 1}, wantErr: true},
		{name: "zero increment", cmd: OverrideSettings{Checks: 1, Increment: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := env.start(t, "ralts")
			env.apply(t, h.ID, AddCheck{})

			res, err := env.registry.Apply(context.Background(), h.ID, tt.cmd)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidSettings) {
					t.Fatalf("err = %v, want ErrInvalidSettings", err)
				}
				got, _ := env.registry.Get(h.ID)
				if got.Checks != 1 || got.Increment != 1 {
					t.Errorf("hunt changed after rejected override: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Hunt.Checks != tt.cmd.Checks || res.Hunt.TotalElapsedMs != tt.cmd.TotalElapsedMs || res.Hunt.Increment != tt.cmd.Increment {
				t.Errorf("hunt = %d/%d/%d, want %+v", res.Hunt.Checks, res.Hunt.TotalElapsedMs, res.Hunt.Increment, tt.cmd)
			}
		})
	}
}

func TestRegistry_IncrementAppliesToChecks(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")
	env.apply(t, h.ID, OverrideSettings{Checks: 10, Increment: 4})

	res := env.apply(t, h.ID, AddCheck{})
	if res.Hunt.Checks != 14 {
		t.Errorf("Checks = %d, want 14", res.Hunt.Checks)
	}
	res = env.apply(t, h.ID, DecreaseCheck{})
	if res.Hunt.Checks != 10 {
		t.Errorf("Checks = %d, want 10", res.Hunt.Checks)
	}
}

func TestRegistry_ResetKeepsStatusAndIdentity(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")
	env.clock.Advance(8 * time.Second)
	env.apply(t, h.ID, AddCheck{})
	env.apply(t, h.ID, Pause{})

	res := env.apply(t, h.ID, Reset{})
	got := res.Hunt
	if got.Checks != 0 || got.TotalElapsedMs != 0 {
		t.Errorf("counters = %d/%d, want 0/0", got.Checks, got.TotalElapsedMs)
	}
	if got.Status != domain.StatusPaused {
		t.Errorf("Status = %s, want paused", got.Status)
	}
	if got.ID != h.ID || got.Pokemon.Key != "ralts" || got.Game != "sv" || got.Method != "masuda" {
		t.Errorf("identity changed: %+v", got)
	}
	if !got.StartedAt.Equal(h.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, h.StartedAt)
	}
	if elapsed, _ := env.registry.Elapsed(h.ID); elapsed != 0 {
		t.Errorf("open interval = %v, want 0", elapsed)
	}
}

func TestRegistry_EditDetails(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")
	env.apply(t, h.ID, OverrideSettings{Checks: 45, TotalElapsedMs: 1000, Increment: 1})

	phase := "2"
	res := env.apply(t, h.ID, EditDetails{
		Game:      "bdsp",
		Method:    "chain",
		Pokemon:   domain.PokemonRef{Key: "kirlia"},
		Modifiers: domain.Modifiers{"charm": true},
		Phase:     &phase,
	})

	got := res.Hunt
	if got.Game != "bdsp" || got.Method != "chain" || got.Pokemon.Key != "kirlia" || got.Phase != "2" {
		t.Errorf("details not applied: %+v", got)
	}
	if got.Checks != 45 || got.TotalElapsedMs != 1000 {
		t.Errorf("counters changed: %d/%d", got.Checks, got.TotalElapsedMs)
	}
	if d, ok := got.CurrentOdds(); !ok || d != 99 {
		t.Errorf("CurrentOdds = %v/%v, want progressive 99 at 45 checks", d, ok)
	}

	res = env.apply(t, h.ID, EditDetails{Pokemon: got.Pokemon})
	if res.Hunt.Odds.Available() {
		t.Error("odds must be unavailable without game and method")
	}
	if res.Hunt.Phase != "2" {
		t.Errorf("nil Phase must keep the current phase, got %q", res.Hunt.Phase)
	}
}

func TestRegistry_ProgressiveOddsFollowChecks(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.registry.Apply(context.Background(), "", Start{
		Pokemon: domain.PokemonRef{Key: "ralts"},
		Game:    "bdsp",
		Method:  "chain",
	})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	id := res.Hunt.ID

	if d, _ := res.Hunt.CurrentOdds(); d != 4096 {
		t.Errorf("odds at 0 = %v, want 4096", d)
	}
	res = env.apply(t, id, OverrideSettings{Checks: 40, Increment: 1})
	if d, _ := res.Hunt.CurrentOdds(); d != 99 {
		t.Errorf("odds at 40 = %v, want 99", d)
	}
}

func TestRegistry_ToggleDebounce(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	res := env.apply(t, h.ID, TogglePause{})
	if !res.Changed || !res.Hunt.Paused {
		t.Fatalf("first toggle = %+v, want paused", res)
	}

	env.clock.Advance(200 * time.Millisecond)
	res = env.apply(t, h.ID, TogglePause{})
	if !res.Debounced || res.Changed {
		t.Errorf("second toggle = %+v, want debounced", res)
	}
	if !res.Hunt.Paused {
		t.Error("debounced toggle must not change state")
	}

	env.clock.Advance(400 * time.Millisecond)
	res = env.apply(t, h.ID, TogglePause{})
	if !res.Changed || res.Hunt.Paused {
		t.Errorf("third toggle = %+v, want resumed", res)
	}
}

func TestRegistry_PauseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")

	env.apply(t, h.ID, Pause{})
	env.clock.Advance(time.Second)
	res := env.apply(t, h.ID, Pause{})
	if res.Changed || res.Debounced {
		t.Errorf("pause while paused = %+v, want plain no-op", res)
	}
	res = env.apply(t, h.ID, Resume{})
	if !res.Changed || res.Hunt.Status != domain.StatusActive {
		t.Errorf("resume = %+v, want active", res)
	}
}

func TestRegistry_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	env.start(t, "ralts")

	cmds := []Command{Pause{}, Resume{}, TogglePause{}, AddCheck{}, DecreaseCheck{}, EditDetails{}, OverrideSettings{Increment: 1}, Reset{}, Complete{}, Delete{}}
	for _, cmd := range cmds {
		t.Run(string(cmd.Kind()), func(t *testing.T) {
			_, err := env.registry.Apply(context.Background(), "nope", cmd)
			if !errors.Is(err, domain.ErrHuntNotFound) {
				t.Errorf("err = %v, want ErrHuntNotFound", err)
			}
		})
	}
	if env.registry.Len() != 1 {
		t.Errorf("Len = %d, want 1", env.registry.Len())
	}
}

func TestRegistry_NilCommand(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.registry.Apply(context.Background(), "x", nil); !errors.Is(err, domain.ErrUnknownCommand) {
		t.Errorf("err = %v, want ErrUnknownCommand", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	env := newTestEnv(t)
	a := env.start(t, "ralts")
	b := env.start(t, "zorua")

	res := env.apply(t, a.ID, Delete{})
	if res.Hunt.Status != domain.StatusDeleted {
		t.Errorf("final status = %s, want deleted", res.Hunt.Status)
	}
	if _, ok := env.registry.Get(a.ID); ok {
		t.Error("deleted hunt still live")
	}
	if _, ok := env.registry.Elapsed(a.ID); ok {
		t.Error("deleted hunt still has a timer")
	}
	if _, err := env.registry.Apply(context.Background(), a.ID, AddCheck{}); !errors.Is(err, domain.ErrHuntNotFound) {
		t.Errorf("command after delete err = %v, want ErrHuntNotFound", err)
	}

	list := env.registry.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("List = %+v, want only %s", list, b.ID)
	}
}

func TestRegistry_Complete(t *testing.T) {
	env := newTestEnv(t)
	h := env.start(t, "ralts")
	env.clock.Advance(12 * time.Second)
	env.apply(t, h.ID, AddCheck{})
	env.apply(t, h.ID, AddCheck{})

	res := env.apply(t, h.ID, Complete{Ball: "luxury", Mark: "rare", Notes: "finally"})
	if res.Hunt.Status != domain.StatusCompleted {
		t.Errorf("final status = %s, want completed", res.Hunt.Status)
	}
	if res.Entry == nil {
		t.Fatal("expected collection entry in result")
	}
	if _, ok := env.registry.Get(h.ID); ok {
		t.Error("completed hunt still live")
	}

	rec, err := env.store.GetEntry(context.Background(), "ralts")
	if err != nil || rec == nil {
		t.Fatalf("GetEntry = %v, %v", rec, err)
	}
	if len(rec.Entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(rec.Entries))
	}
	e := rec.Entries[0]
	if e.HuntID != h.ID || e.Checks != 2 || e.ElapsedMs != 12000 {
		t.Errorf("entry = %+v", e)
	}
	if e.Ball != "luxury" || e.Mark != "rare" || e.Notes != "finally" || e.Game != "sv" || e.Method != "masuda" {
		t.Errorf("entry details = %+v", e)
	}
	if e.ID != res.Entry.ID {
		t.Errorf("entry id = %q, result entry id = %q", e.ID, res.Entry.ID)
	}
}

func TestRegistry_CompleteFailureKeepsHunt(t *testing.T) {
	env := newTestEnv(t)
	env.store.PutErr = errors.New("collection offline")
	h := env.start(t, "ralts")
	env.apply(t, h.ID, OverrideSettings{Checks: 77, TotalElapsedMs: 5000, Increment: 1})
	before, _ := env.registry.Get(h.ID)

	_, err := env.registry.Apply(context.Background(), h.ID, Complete{Ball: "poke"})
	if err == nil {
		t.Fatal("expected completion error")
	}

	after, ok := env.registry.Get(h.ID)
	if !ok {
		t.Fatal("hunt removed after failed completion")
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("hunt changed after failed completion:\nbefore %+v\nafter  %+v", before, after)
	}
	if _, ok := env.registry.Elapsed(h.ID); !ok {
		t.Error("timer stopped after failed completion")
	}
}

func TestRegistry_CompleteWithoutPokemon(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.registry.Apply(context.Background(), "", Start{Game: "sv", Method: "random"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, err = env.registry.Apply(context.Background(), res.Hunt.ID, Complete{})
	if !errors.Is(err, domain.ErrMissingPokemon) {
		t.Errorf("err = %v, want ErrMissingPokemon", err)
	}
	if env.registry.Len() != 1 {
		t.Error("hunt must stay live")
	}
}

func TestRegistry_ObserversSeeChanges(t *testing.T) {
	env := newTestEnv(t)
	rec := &recordingObserver{}
	env.registry.Subscribe(rec)

	h := env.start(t, "ralts")
	env.apply(t, h.ID, DecreaseCheck{})
	env.apply(t, h.ID, AddCheck{})
	env.apply(t, h.ID, Pause{})

	want := []Mutation{
		{HuntID: h.ID, Kind: KindStart, Critical: true},
		{HuntID: h.ID, Kind: KindAddCheck, Critical: true},
		{HuntID: h.ID, Kind: KindPause, Critical: false},
	}
	if !reflect.DeepEqual(rec.got, want) {
		t.Errorf("mutations = %+v, want %+v", rec.got, want)
	}
}

type recordingObserver struct {
	got []Mutation
}

func (o *recordingObserver) Observe(_ context.Context, m Mutation) {
	o.got = append(o.got, m)
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	env := newTestEnv(t)
	a := env.start(t, "ralts")
	b := env.start(t, "zorua")

	env.clock.Advance(6 * time.Second)
	env.apply(t, a.ID, AddCheck{})
	env.clock.Advance(4 * time.Second)
	env.apply(t, b.ID, OverrideSettings{Checks: 9, TotalElapsedMs: 100, Increment: 3})
	env.apply(t, b.ID, Pause{})

	snap := env.registry.Snapshot()
	if len(snap.Sessions) != 2 {
		t.Fatalf("Sessions = %d, want 2", len(snap.Sessions))
	}
	if !snap.PausedIDs[b.ID] || snap.PausedIDs[a.ID] {
		t.Errorf("PausedIDs = %v", snap.PausedIDs)
	}
	if snap.Increments[b.ID] != 3 {
		t.Errorf("Increments = %v", snap.Increments)
	}
	if snap.AccumulatedElapsedMs[a.ID] != 4000 {
		t.Errorf("AccumulatedElapsedMs[a] = %d, want 4000", snap.AccumulatedElapsedMs[a.ID])
	}

	other := newTestEnvWith(t, &memoryBackend{}, newMemoryCollection(), env.clock)
	if n := other.registry.Restore(snap); n != 2 {
		t.Fatalf("Restore = %d, want 2", n)
	}

	list := other.registry.List()
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("order = %s,%s, want %s,%s", list[0].ID, list[1].ID, a.ID, b.ID)
	}
	if list[0].Checks != 1 || list[0].TotalElapsedMs != 6000 || list[0].Status != domain.StatusActive {
		t.Errorf("restored a = %+v", list[0])
	}
	if list[1].Checks != 9 || list[1].Increment != 3 || list[1].Status != domain.StatusPaused {
		t.Errorf("restored b = %+v", list[1])
	}
	if d, ok := list[0].CurrentOdds(); !ok || d != 4096 {
		t.Errorf("odds not recomputed on restore: %v/%v", d, ok)
	}
	if elapsed, _ := other.registry.Elapsed(a.ID); elapsed != 4*time.Second {
		t.Errorf("open interval of a = %v, want 4s", elapsed)
	}
}

func TestRegistry_RestoreSkipsTerminalAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	snap := domain.NewSnapshot()
	snap.Sessions = []domain.Hunt{
		{ID: "a", Status: domain.StatusActive, Increment: 0, Checks: -3},
		{ID: "a", Status: domain.StatusActive},
		{ID: "done", Status: domain.StatusCompleted},
		{ID: "gone", Status: domain.StatusDeleted},
		{ID: ""},
	}

	if n := env.registry.Restore(snap); n != 1 {
		t.Fatalf("Restore = %d, want 1", n)
	}
	got, _ := env.registry.Get("a")
	if got.Increment != 1 || got.Checks != 0 {
		t.Errorf("restored a = %+v, want clamped counters", got)
	}
}
