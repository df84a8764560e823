package query

import (
	"time"

	"github.com/benchtrack/inventory/inventory"
)

// Predicate is a filter operation name as the presentation layer sends it.
type Predicate string

// Text predicates.
const (
	StartsWith Predicate = "startswith"
	Contains   Predicate = "contains"
	EndsWith   Predicate = "endswith"
	Exactly    Predicate = "exactly"
)

// Numeric predicates.
const (
	Equal          Predicate = "equal"
	NotEqual       Predicate = "not-equal"
	LessThan       Predicate = "less-than"
	GreaterThan    Predicate = "greater-than"
	LessOrEqual    Predicate = "less-or-equal"
	GreaterOrEqual Predicate = "greater-or-equal"
)

// Relative date predicates.
const (
	Past24Hours Predicate = "past 24 hours"
	PastWeek    Predicate = "past week"
	Past30Days  Predicate = "past 30 days"
	Past6Months Predicate = "past 6 months"
	PastYear    Predicate = "past year"
	AllTime     Predicate = "all time"
)

var textPredicates = []Predicate{StartsWith, Contains, EndsWith, Exactly}

var numericOperators = map[Predicate]string{
	Equal:          "=",
	NotEqual:       "!=",
	LessThan:       "<",
	GreaterThan:    ">",
	LessOrEqual:    "<=",
	GreaterOrEqual: ">=",
}

var numericPredicates = []Predicate{Equal, NotEqual, LessThan, GreaterThan, LessOrEqual, GreaterOrEqual}

// dateOffsets maps each relative-date predicate to "now minus offset".
// AllTime has no entry and contributes no clause.
var dateOffsets = map[Predicate]func(time.Time) time.Time{
	Past24Hours: func(t time.Time) time.Time { return t.Add(-24 * time.Hour) },
	PastWeek:    func(t time.Time) time.Time { return t.AddDate(0, 0, -7) },
	Past30Days:  func(t time.Time) time.Time { return t.AddDate(0, 0, -30) },
	Past6Months: func(t time.Time) time.Time { return t.AddDate(0, -6, 0) },
	PastYear:    func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
}

var datePredicates = []Predicate{Past24Hours, PastWeek, Past30Days, Past6Months, PastYear, AllTime}

// PredicatesFor lists the predicates accepted for a column type, in the
// order a picker shows them.
func PredicatesFor(t inventory.ColumnType) []Predicate {
	var src []Predicate
	switch {
	case t == inventory.ColumnText:
		src = textPredicates
	case t.IsNumeric():
		src = numericPredicates
	case t == inventory.ColumnDate:
		src = datePredicates
	}
	out := make([]Predicate, len(src))
	copy(out, src)
	return out
}

// Accepts reports whether p is valid for t.
func Accepts(t inventory.ColumnType, p Predicate) bool {
	for _, q := range PredicatesFor(t) {
		if q == p {
			return true
		}
	}
	return false
}
