package odds

import (
	"math"
	"sort"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

// Engine computes shiny odds from a reference Table.
type Engine struct {
	table *Table
}

// NewEngine creates an engine over table. A nil table yields an engine
// that reports every combination as unavailable.
func NewEngine(table *Table) *Engine {
	if table == nil {
		table = &Table{}
	}
	return &Engine{table: table}
}

// Compute returns the odds snapshot for a hunt. Progressive methods return
// a function of progress so the caller evaluates it against current checks.
func (e *Engine) Compute(game, method string, modifiers domain.Modifiers) domain.Odds {
	g, m, ok := e.lookup(game, method)
	if !ok {
		return domain.UnavailableOdds()
	}
	if len(m.Progressive) > 0 && m.Fixed == 0 {
		mods := modifiers.Clone()
		return domain.ProgressiveOdds(func(progress int) float64 {
			return e.ComputeProgressive(game, method, mods, progress)
		})
	}
	return domain.FixedOdds(denominator(g, m, modifiers, 0))
}

// ComputeProgressive returns the denominator at progress, or 0 when the
// combination is unknown.
func (e *Engine) ComputeProgressive(game, method string, modifiers domain.Modifiers, progress int) float64 {
	g, m, ok := e.lookup(game, method)
	if !ok {
		return 0
	}
	return denominator(g, m, modifiers, progress)
}

// Games returns the known game keys, sorted.
func (e *Engine) Games() []string {
	keys := make([]string, 0, len(e.table.Games))
	for k := range e.table.Games {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Game returns the table entry for a game.
func (e *Engine) Game(key string) (GameTable, bool) {
	g, ok := e.table.Games[key]
	return g, ok
}

func (e *Engine) lookup(game, method string) (GameTable, MethodDef, bool) {
	if game == "" || method == "" {
		return GameTable{}, MethodDef{}, false
	}
	g, ok := e.table.Games[game]
	if !ok {
		return GameTable{}, MethodDef{}, false
	}
	m, ok := g.Methods[method]
	if !ok {
		return GameTable{}, MethodDef{}, false
	}
	return g, m, true
}

func denominator(g GameTable, m MethodDef, modifiers domain.Modifiers, progress int) float64 {
	if m.Fixed > 0 {
		d := m.Fixed
		for name, alt := range m.FixedWith {
			if modifiers[name] && alt < d {
				d = alt
			}
		}
		return d
	}

	rolls := 1 + m.Rolls
	for name, on := range modifiers {
		if !on {
			continue
		}
		if mod, ok := g.Modifiers[name]; ok {
			rolls += mod.Rolls
		}
	}

	if step, ok := stepAt(m.Progressive, progress); ok {
		if step.Odds > 0 {
			return step.Odds
		}
		rolls += step.Rolls
	}

	return math.Round(g.Base/float64(rolls)*100) / 100
}

// stepAt returns the last step whose At is <= progress. Steps are sorted.
func stepAt(steps []Step, progress int) (Step, bool) {
	var found Step
	ok := false
	for _, s := range steps {
		if s.At > progress {
			break
		}
		found = s
		ok = true
	}
	return found, ok
}
