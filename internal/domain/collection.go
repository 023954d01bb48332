package domain

import "time"

// CollectionEntry is the external collection record for one Pokémon.
// Entries holds one sub-entry per completed hunt, oldest first.
type CollectionEntry struct {
	Key       string
	Pokemon   PokemonRef
	Entries   []CaughtEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CaughtEntry is the finalized record of a completed hunt.
type CaughtEntry struct {
	ID        string
	HuntID    string
	Date      time.Time
	Checks    int
	ElapsedMs int64
	Game      string
	Method    string
	Phase     string
	Modifiers Modifiers
	Ball      string
	Mark      string
	Notes     string
}
