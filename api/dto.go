/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures the presentation layer exchanges with the
  core. Records (products, lots, events, stock levels) are returned as
  their inventory types; everything around them lives here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Schema:
    EntityDTO, ColumnDTO

  Relations:
    RowsResponse, FieldsRequest, KeysResponse

  Lots:
    AdvanceLotRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

  Errors:
    ErrorResponse

SEE ALSO:
  - handlers.go: Uses these types
  - factory/filters.go: FilterJSON, the search request body
*/
package api

import (
	"github.com/benchtrack/inventory/factory"
	"github.com/benchtrack/inventory/inventory"
)

// =============================================================================
// SCHEMA
// =============================================================================

// EntityDTO describes one searchable entity or view.
type EntityDTO struct {
	Name        string `json:"name"`
	KeyColumn   string `json:"key_column"`
	QuickSearch string `json:"quick_search,omitempty"`
	ReadOnly    bool   `json:"read_only"`
}

// ColumnDTO describes one column and the predicates its type accepts.
type ColumnDTO struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Writable   bool     `json:"writable"`
	Nullable   bool     `json:"nullable"`
	Predicates []string `json:"predicates"`
}

// =============================================================================
// RELATIONS
// =============================================================================

// RowsResponse is a relation's result set together with the filter state
// that produced it.
type RowsResponse struct {
	Entity    string             `json:"entity"`
	Count     int                `json:"count"`
	Rows      []inventory.Record `json:"rows"`
	Filters   factory.FilterJSON `json:"filters"`
	IsDefault bool               `json:"is_default"`
}

// FieldsRequest is a create or update body: column name to value. Values
// may be strings, numbers or booleans.
type FieldsRequest map[string]factory.ScalarValue

func (r FieldsRequest) Fields() inventory.Fields {
	f := make(inventory.Fields, len(r))
	for col, v := range r {
		f[inventory.Column(col)] = string(v)
	}
	return f
}

type KeysResponse struct {
	Entity string   `json:"entity"`
	Keys   []string `json:"keys"`
}

// =============================================================================
// LOTS
// =============================================================================

// AdvanceLotRequest moves a lot to its next state.
type AdvanceLotRequest struct {
	To       string `json:"to"`
	Date     string `json:"date"`
	Initials string `json:"initials"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every failed request. Kind is the error
// taxonomy name the client switches on.
type ErrorResponse struct {
	Kind    string            `json:"kind"`
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
