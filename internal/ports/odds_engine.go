package ports

import "github.com/emiliopalmerini/shinyhunt/internal/domain"

// OddsEngine maps game/method/modifier choices to a probability
// denominator. Implementations are pure and never fail: missing data
// yields unavailable odds.
type OddsEngine interface {
	// Compute returns fixed, progressive or unavailable odds.
	Compute(game, method string, modifiers domain.Modifiers) domain.Odds
	// ComputeProgressive returns the denominator at the given progress,
	// or 0 when the combination has no data.
	ComputeProgressive(game, method string, modifiers domain.Modifiers, progress int) float64
}
