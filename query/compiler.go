/*
Package query compiles per-column filters into parameterized
SQL fragments.

PURPOSE:
  The presentation layer sends {column: {predicate, value}} plus one
  quick-search string. The compiler turns that into a WHERE fragment whose
  identifiers all come from the inventory schema and whose values are all
  bound parameters.

RULES:
  - Text:          startswith | contains | endswith | exactly
  - Numeric:       equal | not-equal | less-than | greater-than |
                   less-or-equal | greater-or-equal
  - Relative date: past 24 hours | past week | past 30 days |
                   past 6 months | past year | all time
  - Blank text/numeric values contribute nothing; "all time" contributes
    nothing.
  - Everything combines with AND. Quick search is a prefix match on the
    entity's designated column.
  - Compiling the same spec twice yields identical SQL and arguments.

USAGE:
  c := query.NewCompiler()
  where, err := c.Compile(inventory.EntityProduct.Def(), query.Spec{
      inventory.ColStation: {Predicate: query.Exactly, Value: "Bench 2"},
  }, "Glo")
  // where.SQL  == "products.station = ? AND products.name LIKE ? ESCAPE '\'"
  // where.Args == []any{"Bench 2", "Glo%"}
*/
package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/benchtrack/inventory/inventory"
)

// Condition is one column filter.
type Condition struct {
	Predicate Predicate `json:"predicate"`
	Value     string    `json:"value"`
}

// Spec maps columns to their filter. Iteration order does not matter; the
// compiler walks the entity's columns in schema order.
type Spec map[inventory.Column]Condition

// Clone returns a copy of s.
func (s Spec) Clone() Spec {
	if s == nil {
		return nil
	}
	out := make(Spec, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether two specs hold the same conditions.
func (s Spec) Equal(o Spec) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		if w, ok := o[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Fragment is a single clause with its bound argument.
type Fragment struct {
	SQL string
	Arg any
}

// Where is the compiled filter. An empty SQL means "no restriction".
type Where struct {
	SQL  string
	Args []any
}

func (w Where) Empty() bool { return w.SQL == "" }

// Clause returns " WHERE ..." or "".
func (w Where) Clause() string {
	if w.Empty() {
		return ""
	}
	return " WHERE " + w.SQL
}

// =============================================================================
// COMPILER
// =============================================================================

// Compiler holds the clock used for relative date bounds.
type Compiler struct {
	now func() time.Time
}

type Option func(*Compiler)

// WithClock fixes "now" for relative date predicates.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) { c.now = now }
}

func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the WHERE fragment for def from spec and quick.
func (c *Compiler) Compile(def *inventory.EntityDef, spec Spec, quick string) (Where, error) {
	for col := range spec {
		if _, ok := def.Column(col); !ok {
			return Where{}, &inventory.ValidationError{Entity: def.Name, Field: string(col), Reason: "unknown column"}
		}
	}

	var frags []Fragment
	for _, cd := range def.Columns {
		cond, ok := spec[cd.Name]
		if !ok {
			continue
		}
		frag, ok, err := c.Condition(def, cd, cond)
		if err != nil {
			return Where{}, err
		}
		if ok {
			frags = append(frags, frag)
		}
	}

	if q := strings.TrimSpace(quick); q != "" && def.QuickSearch != "" {
		frags = append(frags, Fragment{
			SQL: like(def, def.QuickSearch),
			Arg: escapeLike(q) + "%",
		})
	}

	return join(frags), nil
}

// Condition compiles a single column filter. ok is false when the filter is
// inert.
func (c *Compiler) Condition(def *inventory.EntityDef, cd inventory.ColumnDef, cond Condition) (Fragment, bool, error) {
	if !Accepts(cd.Type, cond.Predicate) {
		return Fragment{}, false, &inventory.UnknownPredicateError{
			Column:    cd.Name,
			Type:      cd.Type,
			Predicate: string(cond.Predicate),
		}
	}

	switch {
	case cd.Type == inventory.ColumnDate:
		offset, ok := dateOffsets[cond.Predicate]
		if !ok {
			return Fragment{}, false, nil
		}
		bound := inventory.DateOf(offset(c.now()))
		return Fragment{SQL: qualified(def, cd.Name) + " >= ?", Arg: string(bound)}, true, nil

	case cd.Type.IsNumeric():
		raw := strings.TrimSpace(cond.Value)
		if raw == "" {
			return Fragment{}, false, nil
		}
		arg, err := parseNumber(cd, raw)
		if err != nil {
			return Fragment{}, false, &inventory.ValidationError{
				Entity: def.Name,
				Field:  string(cd.Name),
				Reason: "must be a " + cd.Type.String() + " number",
				Value:  cond.Value,
			}
		}
		return Fragment{SQL: qualified(def, cd.Name) + " " + numericOperators[cond.Predicate] + " ?", Arg: arg}, true, nil

	default:
		if strings.TrimSpace(cond.Value) == "" {
			return Fragment{}, false, nil
		}
		v := cond.Value
		switch cond.Predicate {
		case Exactly:
			return Fragment{SQL: qualified(def, cd.Name) + " = ?", Arg: v}, true, nil
		case StartsWith:
			return Fragment{SQL: like(def, cd.Name), Arg: escapeLike(v) + "%"}, true, nil
		case EndsWith:
			return Fragment{SQL: like(def, cd.Name), Arg: "%" + escapeLike(v)}, true, nil
		default:
			return Fragment{SQL: like(def, cd.Name), Arg: "%" + escapeLike(v) + "%"}, true, nil
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func qualified(def *inventory.EntityDef, col inventory.Column) string {
	return string(def.Name) + "." + string(col)
}

func like(def *inventory.EntityDef, col inventory.Column) string {
	return qualified(def, col) + ` LIKE ? ESCAPE '\'`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func parseNumber(cd inventory.ColumnDef, raw string) (any, error) {
	if cd.Type == inventory.ColumnInteger {
		return strconv.ParseInt(raw, 10, 64)
	}
	return strconv.ParseFloat(raw, 64)
}

func join(frags []Fragment) Where {
	if len(frags) == 0 {
		return Where{}
	}
	parts := make([]string, len(frags))
	args := make([]any, len(frags))
	for i, f := range frags {
		parts[i] = f.SQL
		args[i] = f.Arg
	}
	return Where{SQL: strings.Join(parts, " AND "), Args: args}
}
