package domain

import (
	"fmt"
	"math"
)

// OddsKind classifies how a hunt's odds are obtained.
type OddsKind int

const (
	OddsUnavailable OddsKind = iota
	OddsFixed
	OddsProgressive
)

// Odds is the last-computed probability denominator of a hunt.
// Progressive odds hold a function of the current progress (checks) and
// are evaluated on demand rather than cached.
type Odds struct {
	Kind        OddsKind
	Denominator float64
	progressive func(progress int) float64
}

// UnavailableOdds is the sentinel used when no game/method is chosen or
// the reference table has no data for the combination.
func UnavailableOdds() Odds {
	return Odds{Kind: OddsUnavailable}
}

// FixedOdds returns odds with a constant denominator.
// Non-positive or non-finite denominators degrade to unavailable.
func FixedOdds(denominator float64) Odds {
	if denominator <= 0 || math.IsInf(denominator, 0) || math.IsNaN(denominator) {
		return UnavailableOdds()
	}
	return Odds{Kind: OddsFixed, Denominator: denominator}
}

// ProgressiveOdds returns odds that are evaluated against progress.
func ProgressiveOdds(fn func(progress int) float64) Odds {
	if fn == nil {
		return UnavailableOdds()
	}
	return Odds{Kind: OddsProgressive, progressive: fn}
}

// At returns the denominator in effect at the given progress.
// The second result is false when the odds are unavailable.
func (o Odds) At(progress int) (float64, bool) {
	switch o.Kind {
	case OddsFixed:
		return o.Denominator, true
	case OddsProgressive:
		d := o.progressive(progress)
		if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// Available reports whether the odds carry any data.
func (o Odds) Available() bool {
	return o.Kind != OddsUnavailable
}

// Format renders the odds at the given progress as "1/N".
func (o Odds) Format(progress int) string {
	d, ok := o.At(progress)
	if !ok {
		return "-"
	}
	if d == math.Trunc(d) {
		return fmt.Sprintf("1/%.0f", d)
	}
	return fmt.Sprintf("1/%.2f", d)
}
