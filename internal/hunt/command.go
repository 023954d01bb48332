package hunt

import (
	"context"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

// CommandKind names a registry command.
type CommandKind string

const (
	KindStart            CommandKind = "start"
	KindPause            CommandKind = "pause"
	KindResume           CommandKind = "resume"
	KindToggle           CommandKind = "toggle"
	KindAddCheck         CommandKind = "add_check"
	KindDecreaseCheck    CommandKind = "decrease_check"
	KindEditDetails      CommandKind = "edit_details"
	KindOverrideSettings CommandKind = "override_settings"
	KindReset            CommandKind = "reset"
	KindComplete         CommandKind = "complete"
	KindDelete           CommandKind = "delete"
)

// Critical reports whether a mutation of this kind must be flushed
// immediately instead of going through the save throttle.
func (k CommandKind) Critical() bool {
	switch k {
	case KindStart, KindAddCheck, KindDecreaseCheck, KindComplete, KindDelete, KindOverrideSettings:
		return true
	default:
		return false
	}
}

// Command is an intent applied to one hunt through Registry.Apply.
type Command interface {
	Kind() CommandKind
}

// Start creates a new hunt. The id passed to Apply is ignored.
type Start struct {
	Pokemon   domain.PokemonRef
	Game      string
	Ball      string
	Mark      string
	Method    string
	Notes     string
	Phase     string
	Modifiers domain.Modifiers
}

type Pause struct{}

type Resume struct{}

// TogglePause flips between Active and Paused.
type TogglePause struct{}

type AddCheck struct{}

type DecreaseCheck struct{}

// EditDetails replaces identity fields and recomputes the odds. A nil
// Phase keeps the current one.
type EditDetails struct {
	Game      string
	Method    string
	Pokemon   domain.PokemonRef
	Modifiers domain.Modifiers
	Phase     *string
}

// OverrideSettings overwrites the numeric fields of a hunt.
type OverrideSettings struct {
	Checks         int
	TotalElapsedMs int64
	Increment      int
}

type Reset struct{}

// Complete records the hunt into the collection and removes it.
type Complete struct {
	Ball  string
	Mark  string
	Notes string
}

type Delete struct{}

func (Start) Kind() CommandKind            { return KindStart }
func (Pause) Kind() CommandKind            { return KindPause }
func (Resume) Kind() CommandKind           { return KindResume }
func (TogglePause) Kind() CommandKind      { return KindToggle }
func (AddCheck) Kind() CommandKind         { return KindAddCheck }
func (DecreaseCheck) Kind() CommandKind    { return KindDecreaseCheck }
func (EditDetails) Kind() CommandKind      { return KindEditDetails }
func (OverrideSettings) Kind() CommandKind { return KindOverrideSettings }
func (Reset) Kind() CommandKind            { return KindReset }
func (Complete) Kind() CommandKind         { return KindComplete }
func (Delete) Kind() CommandKind           { return KindDelete }

// Result describes the outcome of one command.
type Result struct {
	Kind CommandKind
	// Hunt is a copy of the session after the command. For complete and
	// delete it is the final state, with a terminal status.
	Hunt domain.Hunt
	// Changed is false for no-ops (decrease at zero, pause while paused,
	// debounced toggles).
	Changed bool
	// Debounced is set when a pause/resume arrived within the debounce
	// window of the previous accepted one.
	Debounced bool
	// CreditedMs is the interval time credited by add_check.
	CreditedMs int64
	// Entry is the collection sub-entry written by complete.
	Entry *domain.CaughtEntry
}

// Mutation is published to observers after a command changed the registry.
type Mutation struct {
	HuntID   string
	Kind     CommandKind
	Critical bool
}

// MutationObserver is notified after every mutation, outside the registry
// lock.
type MutationObserver interface {
	Observe(ctx context.Context, m Mutation)
}
