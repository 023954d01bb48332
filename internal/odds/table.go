package odds

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTable []byte

// Table is the odds reference data loaded from YAML.
type Table struct {
	Version string               `yaml:"version"`
	Games   map[string]GameTable `yaml:"games"`
}

// GameTable holds the base odds of one game and the methods and modifiers
// it supports.
type GameTable struct {
	Name      string                 `yaml:"name"`
	Base      float64                `yaml:"base"`
	Modifiers map[string]ModifierDef `yaml:"modifiers"`
	Methods   map[string]MethodDef   `yaml:"methods"`
}

// ModifierDef adds rolls when its flag is set.
type ModifierDef struct {
	Rolls int `yaml:"rolls"`
}

// MethodDef describes one hunting method. Fixed overrides the roll model
// with a constant denominator; FixedWith overrides Fixed when a modifier
// is set. Progressive lists steps for chain/combo/streak methods.
type MethodDef struct {
	Name        string             `yaml:"name"`
	Rolls       int                `yaml:"rolls"`
	Fixed       float64            `yaml:"fixed,omitempty"`
	FixedWith   map[string]float64 `yaml:"fixed_with,omitempty"`
	Progressive []Step             `yaml:"progressive,omitempty"`
}

// Step applies from At progress upwards until the next step. Odds, when
// set, is the denominator at this step; otherwise Rolls extra rolls apply.
type Step struct {
	At    int     `yaml:"at"`
	Rolls int     `yaml:"rolls,omitempty"`
	Odds  float64 `yaml:"odds,omitempty"`
}

var ErrInvalidTable = errors.New("invalid odds table")

// DefaultTable parses the table shipped with the binary.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTable)
}

// LoadTable reads and validates a table from path.
func LoadTable(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read odds table: %w", err)
	}
	return ParseTable(b)
}

// ParseTable decodes and validates YAML odds data. Progressive steps are
// sorted by At.
func ParseTable(b []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("failed to parse odds table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for gi, g := range t.Games {
		for mi, m := range g.Methods {
			sort.Slice(m.Progressive, func(i, j int) bool { return m.Progressive[i].At < m.Progressive[j].At })
			g.Methods[mi] = m
		}
		t.Games[gi] = g
	}
	return &t, nil
}

// Validate checks semantic constraints of the table.
func (t *Table) Validate() error {
	var errs []string

	for key, g := range t.Games {
		if g.Base <= 0 {
			errs = append(errs, fmt.Sprintf("games.%s.base must be > 0", key))
		}
		for name, mod := range g.Modifiers {
			if mod.Rolls < 0 {
				errs = append(errs, fmt.Sprintf("games.%s.modifiers.%s.rolls must be >= 0", key, name))
			}
		}
		for name, m := range g.Methods {
			if m.Rolls < 0 {
				errs = append(errs, fmt.Sprintf("games.%s.methods.%s.rolls must be >= 0", key, name))
			}
			if m.Fixed < 0 {
				errs = append(errs, fmt.Sprintf("games.%s.methods.%s.fixed must be >= 0", key, name))
			}
			for mod, d := range m.FixedWith {
				if d <= 0 {
					errs = append(errs, fmt.Sprintf("games.%s.methods.%s.fixed_with.%s must be > 0", key, name, mod))
				}
			}
			for i, s := range m.Progressive {
				if s.At < 0 {
					errs = append(errs, fmt.Sprintf("games.%s.methods.%s.progressive[%d].at must be >= 0", key, name, i))
				}
				if s.Rolls < 0 || s.Odds < 0 {
					errs = append(errs, fmt.Sprintf("games.%s.methods.%s.progressive[%d] must not be negative", key, name, i))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTable, strings.Join(errs, "; "))
	}
	return nil
}
