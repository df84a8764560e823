package query_test

import (
	"testing"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC) }
}

func newCompiler() *query.Compiler {
	return query.NewCompiler(query.WithClock(fixedClock()))
}

// =============================================================================
// TEXT
// =============================================================================

func TestCompile_TextPredicates(t *testing.T) {
	def := inventory.EntityProduct.Def()
	c := newCompiler()

	tests := []struct {
		pred query.Predicate
		sql  string
		arg  string
	}{
		{query.StartsWith, `products.station LIKE ? ESCAPE '\'`, "Bench%"},
		{query.Contains, `products.station LIKE ? ESCAPE '\'`, "%Bench%"},
		{query.EndsWith, `products.station LIKE ? ESCAPE '\'`, "%Bench"},
		{query.Exactly, `products.station = ?`, "Bench"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pred), func(t *testing.T) {
			where, err := c.Compile(def, query.Spec{
				inventory.ColStation: {Predicate: tt.pred, Value: "Bench"},
			}, "")
			require.NoError(t, err)
			assert.Equal(t, tt.sql, where.SQL)
			assert.Equal(t, []any{tt.arg}, where.Args)
		})
	}
}

func TestCompile_LikeWildcardsAreEscaped(t *testing.T) {
	where, err := newCompiler().Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColName: {Predicate: query.Contains, Value: `50%_off\`},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []any{`%50\%\_off\\%`}, where.Args)
}

func TestCompile_InjectionStaysInArgs(t *testing.T) {
	evil := "x' OR 1=1; DROP TABLE products; --"
	where, err := newCompiler().Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColName: {Predicate: query.Exactly, Value: evil},
	}, evil)
	require.NoError(t, err)
	assert.NotContains(t, where.SQL, "DROP")
	assert.Equal(t, evil, where.Args[0])
}

// =============================================================================
// NUMERIC
// =============================================================================

func TestCompile_NumericPredicates(t *testing.T) {
	def := inventory.EntityProduct.Def()
	c := newCompiler()

	ops := map[query.Predicate]string{
		query.Equal:          "=",
		query.NotEqual:       "!=",
		query.LessThan:       "<",
		query.GreaterThan:    ">",
		query.LessOrEqual:    "<=",
		query.GreaterOrEqual: ">=",
	}
	for pred, op := range ops {
		where, err := c.Compile(def, query.Spec{inventory.ColAlert: {Predicate: pred, Value: " 5 "}}, "")
		require.NoError(t, err)
		assert.Equal(t, "products.alert "+op+" ?", where.SQL)
		assert.Equal(t, []any{int64(5)}, where.Args)
	}

	where, err := c.Compile(def, query.Spec{inventory.ColUnitPrice: {Predicate: query.LessThan, Value: "9.99"}}, "")
	require.NoError(t, err)
	assert.Equal(t, []any{9.99}, where.Args)
}

func TestCompile_NumericRejectsGarbage(t *testing.T) {
	c := newCompiler()
	_, err := c.Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColAlert: {Predicate: query.Equal, Value: "five"},
	}, "")
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = c.Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColAlert: {Predicate: query.Equal, Value: "5.5"},
	}, "")
	assert.ErrorIs(t, err, inventory.ErrValidation, "integer column")
}

// =============================================================================
// RELATIVE DATES
// =============================================================================

func TestCompile_RelativeDates(t *testing.T) {
	def := inventory.EntityConsumableLot.Def()
	c := newCompiler()

	bounds := map[query.Predicate]string{
		query.Past24Hours: "2024-03-14",
		query.PastWeek:    "2024-03-08",
		query.Past30Days:  "2024-02-14",
		query.Past6Months: "2023-09-15",
		query.PastYear:    "2023-03-15",
	}
	for pred, bound := range bounds {
		where, err := c.Compile(def, query.Spec{inventory.ColReceivedDate: {Predicate: pred}}, "")
		require.NoError(t, err, pred)
		assert.Equal(t, "consumable_lots.received_date >= ?", where.SQL)
		assert.Equal(t, []any{bound}, where.Args, pred)
	}

	where, err := c.Compile(def, query.Spec{inventory.ColReceivedDate: {Predicate: query.AllTime}}, "")
	require.NoError(t, err)
	assert.True(t, where.Empty())
	assert.Equal(t, "", where.Clause())
}

// =============================================================================
// COMBINATION / EDGE CASES
// =============================================================================

func TestCompile_BlankValuesAreInert(t *testing.T) {
	where, err := newCompiler().Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColName:  {Predicate: query.Contains, Value: "  "},
		inventory.ColAlert: {Predicate: query.Equal, Value: ""},
	}, " ")
	require.NoError(t, err)
	assert.True(t, where.Empty())
	assert.Empty(t, where.Args)
}

func TestCompile_CombinesWithAndInSchemaOrder(t *testing.T) {
	where, err := newCompiler().Compile(inventory.EntityNonConsumableEvent.Def(), query.Spec{
		inventory.ColAction:   {Predicate: query.Exactly, Value: "Opened"},
		inventory.ColQuantity: {Predicate: query.GreaterThan, Value: "2"},
	}, "Glo")
	require.NoError(t, err)

	assert.Equal(t,
		`non_consumable_events.quantity > ? AND non_consumable_events.action = ? AND non_consumable_events.product_name LIKE ? ESCAPE '\'`,
		where.SQL)
	assert.Equal(t, []any{int64(2), "Opened", "Glo%"}, where.Args)
	assert.Equal(t, " WHERE "+where.SQL, where.Clause())
}

func TestCompile_Idempotent(t *testing.T) {
	def := inventory.EntityConsumableLot.Def()
	spec := query.Spec{
		inventory.ColLot:          {Predicate: query.StartsWith, Value: "L-"},
		inventory.ColExpiryDate:   {Predicate: query.PastYear},
		inventory.ColProductName:  {Predicate: query.Contains, Value: "Reagent"},
		inventory.ColReceivedDate: {Predicate: query.PastWeek},
	}
	c := newCompiler()

	first, err := c.Compile(def, spec, "Re")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := c.Compile(def, spec, "Re")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompile_UnknownPredicate(t *testing.T) {
	c := newCompiler()

	_, err := c.Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColAlert: {Predicate: query.Contains, Value: "1"},
	}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrUnknownPredicate)

	var upErr *inventory.UnknownPredicateError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, inventory.ColAlert, upErr.Column)

	_, err = c.Compile(inventory.EntityProduct.Def(), query.Spec{
		inventory.ColName: {Predicate: "fuzzy", Value: ""},
	}, "")
	assert.ErrorIs(t, err, inventory.ErrUnknownPredicate, "checked even when the value is blank")
}

func TestCompile_UnknownColumn(t *testing.T) {
	_, err := newCompiler().Compile(inventory.EntityProduct.Def(), query.Spec{
		"lot": {Predicate: query.Exactly, Value: "L-1"},
	}, "")
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestCompile_ViewsUseTheirOwnName(t *testing.T) {
	where, err := newCompiler().Compile(inventory.ViewReorderList.Def(), query.Spec{
		inventory.ColKind: {Predicate: query.Exactly, Value: "consumable"},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "reorder_list.kind = ?", where.SQL)
}

func TestPredicatesFor(t *testing.T) {
	assert.Len(t, query.PredicatesFor(inventory.ColumnText), 4)
	assert.Len(t, query.PredicatesFor(inventory.ColumnInteger), 6)
	assert.Equal(t, query.PredicatesFor(inventory.ColumnInteger), query.PredicatesFor(inventory.ColumnFloat))
	assert.Contains(t, query.PredicatesFor(inventory.ColumnDate), query.AllTime)
	assert.False(t, query.Accepts(inventory.ColumnDate, query.Equal))
}
