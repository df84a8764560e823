package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// CreateStrategy turns one create request into the rows to insert. The rows
// are written in a single transaction.
type CreateStrategy interface {
	Name() string
	Expand(def *EntityDef, f Fields) ([]Fields, error)
}

const (
	StrategySingle         = "single"
	StrategyExpandQuantity = "expand_quantity"
)

// SingleRow inserts exactly what was given.
type SingleRow struct{}

func (SingleRow) Name() string { return StrategySingle }

func (SingleRow) Expand(_ *EntityDef, f Fields) ([]Fields, error) {
	return []Fields{f}, nil
}

// ExpandQuantity reads a quantity pseudo-column and produces that many
// identical rows. Entities that have a real quantity column (the ledger)
// are passed through unchanged.
type ExpandQuantity struct {
	Column Column
	Max    int
}

// DefaultExpandLimit caps how many lots one request may create.
const DefaultExpandLimit = 1000

func NewExpandQuantity() ExpandQuantity {
	return ExpandQuantity{Column: ColQuantity, Max: DefaultExpandLimit}
}

func (ExpandQuantity) Name() string { return StrategyExpandQuantity }

func (s ExpandQuantity) Expand(def *EntityDef, f Fields) ([]Fields, error) {
	if _, real := def.Column(s.Column); real {
		return []Fields{f}, nil
	}
	raw, ok := f[s.Column]
	if !ok || strings.TrimSpace(raw) == "" {
		return []Fields{f}, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > s.Max {
		return nil, &ValidationError{
			Entity: def.Name,
			Field:  string(s.Column),
			Reason: fmt.Sprintf("must be an integer between 1 and %d", s.Max),
			Value:  raw,
		}
	}
	row := f.Clone()
	delete(row, s.Column)
	rows := make([]Fields, n)
	for i := range rows {
		rows[i] = row.Clone()
	}
	return rows, nil
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (CreateStrategy, error) {
	switch strings.TrimSpace(name) {
	case "", StrategySingle:
		return SingleRow{}, nil
	case StrategyExpandQuantity:
		return NewExpandQuantity(), nil
	}
	return nil, &ValidationError{Field: "lot_create_strategy", Reason: "unknown create strategy", Value: name}
}
