/*
Package factory provides JSON to Go filter conversion.

PURPOSE:
  Converts JSON filter documents into query.Spec values the compiler
  accepts. The presentation layer posts them with a search, and the
  configuration file stores one per entity as that entity's default
  filters.

JSON SCHEMA:
  {
    "filters": {
      "station":       {"predicate": "exactly",      "value": "Bench 1"},
      "alert":         {"predicate": "greater-than", "value": 2},
      "received_date": {"predicate": "past week"}
    },
    "quick": "Rea"
  }

  Values may be JSON strings, numbers or booleans; they reach the compiler
  as text. Predicate names are case-insensitive.

KEY FEATURES:
  - Checks every column and predicate against the entity's schema
  - Rejects unknown document fields
  - Round-trips through ToJSON

USAGE:
  f := NewFilterFactory()
  def, spec, quick, err := f.ParseFilter("consumable_lots", doc)

  defaults, err := f.ParseDefaults(cfg.Relations.DefaultFilters)

SEE ALSO:
  - query/compiler.go: Spec and Compile
  - config/config.go:  relations.default_filters
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/query"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// FilterJSON is the JSON representation of a filter state.
type FilterJSON struct {
	Filters map[string]ConditionJSON `json:"filters,omitempty"`
	Quick   string                   `json:"quick,omitempty"`
}

// ConditionJSON is one column's condition.
type ConditionJSON struct {
	Predicate string      `json:"predicate"`
	Value     ScalarValue `json:"value,omitempty"`
}

// ScalarValue accepts a JSON string, number, boolean or null and keeps its
// text.
type ScalarValue string

func (v *ScalarValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = ScalarValue(s)
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		return &inventory.ValidationError{Field: "value", Reason: "must be a string, number or boolean"}
	default:
		*v = ScalarValue(b)
	}
	return nil
}

// =============================================================================
// FILTER FACTORY
// =============================================================================

// FilterFactory converts JSON filter documents to compiler specs.
type FilterFactory struct {
	compiler *query.Compiler
}

func NewFilterFactory() *FilterFactory {
	return &FilterFactory{compiler: query.NewCompiler()}
}

// ParseFilter parses a filter document for the named entity. An empty
// document means no filters.
func (f *FilterFactory) ParseFilter(entity string, doc string) (*inventory.EntityDef, query.Spec, string, error) {
	def, err := inventory.Lookup(entity)
	if err != nil {
		return nil, nil, "", err
	}
	var fj FilterJSON
	if strings.TrimSpace(doc) != "" {
		if err := Decode([]byte(doc), &fj); err != nil {
			return nil, nil, "", err
		}
	}
	spec, err := f.FromJSON(def, fj)
	if err != nil {
		return nil, nil, "", err
	}
	return def, spec, fj.Quick, nil
}

// FromJSON converts a decoded document and checks it against def.
func (f *FilterFactory) FromJSON(def *inventory.EntityDef, fj FilterJSON) (query.Spec, error) {
	spec := make(query.Spec, len(fj.Filters))
	for col, cj := range fj.Filters {
		spec[inventory.Column(col)] = query.Condition{
			Predicate: query.Predicate(strings.ToLower(strings.TrimSpace(cj.Predicate))),
			Value:     string(cj.Value),
		}
	}
	if _, err := f.compiler.Compile(def, spec, fj.Quick); err != nil {
		return nil, err
	}
	return spec, nil
}

// ParseDefaults parses the configured default filters, keyed by entity name.
func (f *FilterFactory) ParseDefaults(raw map[string]string) (map[inventory.Entity]query.Spec, error) {
	out := make(map[inventory.Entity]query.Spec, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, spec, quick, err := f.ParseFilter(name, raw[name])
		if err != nil {
			return nil, err
		}
		if quick != "" {
			return nil, &inventory.ValidationError{
				Entity: def.Name,
				Field:  "quick",
				Reason: "default filters cannot carry a quick search",
			}
		}
		out[def.Name] = spec
	}
	return out, nil
}

// ToJSON converts a spec and quick search back to a document.
func (f *FilterFactory) ToJSON(spec query.Spec, quick string) FilterJSON {
	fj := FilterJSON{Quick: quick}
	if len(spec) > 0 {
		fj.Filters = make(map[string]ConditionJSON, len(spec))
		for col, cond := range spec {
			fj.Filters[string(col)] = ConditionJSON{
				Predicate: string(cond.Predicate),
				Value:     ScalarValue(cond.Value),
			}
		}
	}
	return fj
}

// Decode reads one JSON document strictly: unknown fields and trailing data
// are rejected as validation errors.
func Decode(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var ve *inventory.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return &inventory.ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if dec.More() {
		return &inventory.ValidationError{Reason: "malformed JSON: trailing data"}
	}
	return nil
}
