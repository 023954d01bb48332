package domain

import "time"

// Snapshot is the persisted state of the hunt registry. It is always
// saved as a full replacement of the previous one.
type Snapshot struct {
	// Revision increases with every dispatched save. Backends must ignore
	// a save whose revision is not newer than the stored one.
	Revision int64 `json:"revision"`

	Sessions             []Hunt               `json:"sessions"`
	TimerAnchors         map[string]time.Time `json:"timerAnchors"`
	LastCheckAnchors     map[string]time.Time `json:"lastCheckAnchors"`
	AccumulatedElapsedMs map[string]int64     `json:"accumulatedElapsedMs"`
	PausedIDs            map[string]bool      `json:"pausedIds"`
	Increments           map[string]int       `json:"increments"`
}

// NewSnapshot returns an empty snapshot with all maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Sessions:             []Hunt{},
		TimerAnchors:         make(map[string]time.Time),
		LastCheckAnchors:     make(map[string]time.Time),
		AccumulatedElapsedMs: make(map[string]int64),
		PausedIDs:            make(map[string]bool),
		Increments:           make(map[string]int),
	}
}

// Normalize allocates any nil map so callers can index freely.
func (s *Snapshot) Normalize() {
	if s.Sessions == nil {
		s.Sessions = []Hunt{}
	}
	if s.TimerAnchors == nil {
		s.TimerAnchors = make(map[string]time.Time)
	}
	if s.LastCheckAnchors == nil {
		s.LastCheckAnchors = make(map[string]time.Time)
	}
	if s.AccumulatedElapsedMs == nil {
		s.AccumulatedElapsedMs = make(map[string]int64)
	}
	if s.PausedIDs == nil {
		s.PausedIDs = make(map[string]bool)
	}
	if s.Increments == nil {
		s.Increments = make(map[string]int)
	}
}
