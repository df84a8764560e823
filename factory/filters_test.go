package factory

import (
	"encoding/json"
	"testing"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	// GIVEN: A lot filter document with mixed value types
	// WHEN: Parsing it
	// THEN: Every value is text and predicate names are normalized

	f := NewFilterFactory()
	def, spec, quick, err := f.ParseFilter("consumable_lots", `{
		"filters": {
			"lot":           {"predicate": "StartsWith", "value": "L-"},
			"id":            {"predicate": "greater-than", "value": 10},
			"received_date": {"predicate": "past week"}
		},
		"quick": "Rea"
	}`)
	require.NoError(t, err)

	assert.Equal(t, inventory.EntityConsumableLot, def.Name)
	assert.Equal(t, "Rea", quick)
	assert.Equal(t, query.Spec{
		inventory.ColLot:          {Predicate: query.StartsWith, Value: "L-"},
		inventory.ColID:           {Predicate: query.GreaterThan, Value: "10"},
		inventory.ColReceivedDate: {Predicate: query.PastWeek, Value: ""},
	}, spec)
}

func TestParseFilter_Empty(t *testing.T) {
	f := NewFilterFactory()

	_, spec, quick, err := f.ParseFilter("products", "  ")
	require.NoError(t, err)
	assert.Empty(t, spec)
	assert.Empty(t, quick)
}

func TestParseFilter_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		doc    string
		target error
	}{
		{"unknown entity", "users", `{}`, inventory.ErrValidation},
		{"malformed", "products", `{"filters":`, inventory.ErrValidation},
		{"unknown field", "products", `{"sort": "name"}`, inventory.ErrValidation},
		{"trailing data", "products", `{} {}`, inventory.ErrValidation},
		{"object value", "products", `{"filters":{"name":{"predicate":"exactly","value":{"a":1}}}}`, inventory.ErrValidation},
		{"unknown column", "products", `{"filters":{"price":{"predicate":"equal","value":1}}}`, inventory.ErrValidation},
		{"wrong predicate", "products", `{"filters":{"alert":{"predicate":"contains","value":"1"}}}`, inventory.ErrUnknownPredicate},
		{"bad number", "products", `{"filters":{"alert":{"predicate":"equal","value":"many"}}}`, inventory.ErrValidation},
	}

	f := NewFilterFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := f.ParseFilter(tt.entity, tt.doc)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestParseDefaults(t *testing.T) {
	f := NewFilterFactory()

	defaults, err := f.ParseDefaults(map[string]string{
		"consumable_lots": `{"filters":{"received_date":{"predicate":"past year"}}}`,
		"reorder_list":    `{"filters":{"station":{"predicate":"exactly","value":"Bench 1"}}}`,
	})
	require.NoError(t, err)
	require.Len(t, defaults, 2)
	assert.Equal(t, query.PastYear, defaults[inventory.EntityConsumableLot][inventory.ColReceivedDate].Predicate)
	assert.Equal(t, "Bench 1", defaults[inventory.ViewReorderList][inventory.ColStation].Value)

	_, err = f.ParseDefaults(map[string]string{"products": `{"quick":"Glo"}`})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewFilterFactory()
	spec := query.Spec{
		inventory.ColAlert:   {Predicate: query.LessOrEqual, Value: "3"},
		inventory.ColStation: {Predicate: query.Contains, Value: "Bench"},
	}

	b, err := json.Marshal(f.ToJSON(spec, "Glo"))
	require.NoError(t, err)

	_, back, quick, err := f.ParseFilter("products", string(b))
	require.NoError(t, err)
	assert.Equal(t, spec, back)
	assert.Equal(t, "Glo", quick)
}
