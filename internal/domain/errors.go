package domain

import "errors"

var (
	// ErrHuntNotFound is returned for commands addressed to an id that is
	// not live in the registry (never existed, completed or deleted).
	ErrHuntNotFound = errors.New("hunt not found")

	// ErrInvalidSettings is returned when a manual override would break
	// the checks/elapsed/increment invariants.
	ErrInvalidSettings = errors.New("invalid hunt settings")

	// ErrMissingPokemon is returned when completing a hunt whose Pokémon
	// reference has no identity to key the collection record on.
	ErrMissingPokemon = errors.New("missing pokemon reference")

	ErrUnknownCommand = errors.New("unknown command")

	// ErrCorruptSnapshot is returned by backends whose stored snapshot
	// exists but cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
