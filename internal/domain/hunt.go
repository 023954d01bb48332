package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"time"
)

// Status is the lifecycle state of a hunt.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

// Live reports whether a hunt in this status belongs in the registry.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusPaused
}

// PokemonRef is an opaque reference to catalog data. Only Key is read by
// the engine (it identifies the collection record); Data is passed through
// unmodified.
type PokemonRef struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Modifiers is a set of named boolean flags affecting odds.
type Modifiers map[string]bool

// Enabled returns the names of all set flags, sorted.
func (m Modifiers) Enabled() []string {
	names := make([]string, 0, len(m))
	for name, on := range m {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy.
func (m Modifiers) Clone() Modifiers {
	if m == nil {
		return Modifiers{}
	}
	return maps.Clone(m)
}

// Hunt is one in-progress shiny hunt.
type Hunt struct {
	ID        string     `json:"id"`
	Pokemon   PokemonRef `json:"pokemon"`
	Game      string     `json:"game"`
	Method    string     `json:"method"`
	Ball      string     `json:"ball"`
	Mark      string     `json:"mark"`
	Notes     string     `json:"notes"`
	Phase     string     `json:"phase,omitempty"`
	Modifiers Modifiers  `json:"modifiers"`

	Checks          int       `json:"checks"`
	Increment       int       `json:"increment"`
	TotalElapsedMs  int64     `json:"totalElapsedMs"`
	LastCheckAnchor time.Time `json:"lastCheckAnchor"`
	StartedAt       time.Time `json:"startedAt"`
	Paused          bool      `json:"paused"`
	Status          Status    `json:"status"`

	Odds Odds `json:"-"`
}

// NewHunt creates an Active hunt with zeroed counters.
func NewHunt(id string, pokemon PokemonRef, game, ball, mark, method, notes string, modifiers Modifiers, odds Odds, now time.Time) *Hunt {
	return &Hunt{
		ID:              id,
		Pokemon:         pokemon,
		Game:            game,
		Method:          method,
		Ball:            ball,
		Mark:            mark,
		Notes:           notes,
		Modifiers:       modifiers.Clone(),
		Checks:          0,
		Increment:       1,
		TotalElapsedMs:  0,
		LastCheckAnchor: now,
		StartedAt:       now,
		Status:          StatusActive,
		Odds:            odds,
	}
}

// CurrentOdds evaluates the odds snapshot against the current checks.
func (h *Hunt) CurrentOdds() (float64, bool) {
	return h.Odds.At(h.Checks)
}

// SetPaused moves the hunt between Active and Paused. It reports whether
// the status changed.
func (h *Hunt) SetPaused(paused bool) bool {
	if h.Paused == paused {
		return false
	}
	h.Paused = paused
	if paused {
		h.Status = StatusPaused
	} else {
		h.Status = StatusActive
	}
	return true
}

// AddCheck adds one increment of checks. creditedMs is the duration of the
// interval that just closed; it is only credited while Active.
func (h *Hunt) AddCheck(creditedMs int64, anchor time.Time) int64 {
	if h.Status != StatusActive || creditedMs < 0 {
		creditedMs = 0
	}
	h.TotalElapsedMs += creditedMs
	h.Checks += h.Increment
	h.LastCheckAnchor = anchor
	return creditedMs
}

// DecreaseCheck subtracts one increment, clamping at zero. It reports
// whether checks changed.
func (h *Hunt) DecreaseCheck() bool {
	if h.Checks == 0 {
		return false
	}
	h.Checks = max(0, h.Checks-h.Increment)
	return true
}

// EditDetails replaces identity fields. Counters and status are untouched;
// the caller supplies the recomputed odds.
func (h *Hunt) EditDetails(game, method string, pokemon PokemonRef, modifiers Modifiers, odds Odds) {
	h.Game = game
	h.Method = method
	h.Pokemon = pokemon
	h.Modifiers = modifiers.Clone()
	h.Odds = odds
}

// OverrideSettings overwrites the numeric fields for manual correction.
func (h *Hunt) OverrideSettings(checks int, totalElapsedMs int64, increment int) error {
	if checks < 0 || totalElapsedMs < 0 || increment < 1 {
		return fmt.Errorf("checks=%d elapsed=%d increment=%d: %w", checks, totalElapsedMs, increment, ErrInvalidSettings)
	}
	h.Checks = checks
	h.TotalElapsedMs = totalElapsedMs
	h.Increment = increment
	return nil
}

// Reset zeroes the counters and restarts the interval. Status is kept.
func (h *Hunt) Reset(anchor time.Time) {
	h.Checks = 0
	h.TotalElapsedMs = 0
	h.LastCheckAnchor = anchor
}

// Finalize builds the collection sub-entry recorded on completion. The
// entry id is assigned by the completion workflow.
func (h *Hunt) Finalize(now time.Time, ball, mark, notes string) CaughtEntry {
	return CaughtEntry{
		HuntID:    h.ID,
		Date:      now.UTC(),
		Checks:    h.Checks,
		ElapsedMs: h.TotalElapsedMs,
		Game:      h.Game,
		Method:    h.Method,
		Phase:     h.Phase,
		Modifiers: h.Modifiers.Clone(),
		Ball:      ball,
		Mark:      mark,
		Notes:     notes,
	}
}

// Clone returns a deep copy safe to hand out of the registry.
func (h *Hunt) Clone() Hunt {
	c := *h
	c.Modifiers = h.Modifiers.Clone()
	if h.Pokemon.Data != nil {
		c.Pokemon.Data = append(json.RawMessage(nil), h.Pokemon.Data...)
	}
	return c
}
