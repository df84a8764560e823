package inventory_test

import (
	"testing"

	"github.com/benchtrack/inventory/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CREATE STRATEGY
// =============================================================================

func TestExpandQuantity_Lots(t *testing.T) {
	s := inventory.NewExpandQuantity()
	def := inventory.EntityConsumableLot.Def()

	rows, err := s.Expand(def, inventory.Fields{
		inventory.ColProductName: "Reagent-A",
		inventory.ColQuantity:    "3",
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "Reagent-A", r[inventory.ColProductName])
		assert.NotContains(t, r, inventory.ColQuantity)
	}

	// Rows are independent copies.
	rows[0][inventory.ColLot] = "changed"
	assert.NotContains(t, rows[1], inventory.ColLot)
}

func TestExpandQuantity_LedgerQuantityIsReal(t *testing.T) {
	s := inventory.NewExpandQuantity()
	f := inventory.Fields{inventory.ColProductName: "Gloves-M", inventory.ColQuantity: "12"}

	rows, err := s.Expand(inventory.EntityNonConsumableEvent.Def(), f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "12", rows[0][inventory.ColQuantity])
}

func TestExpandQuantity_Bounds(t *testing.T) {
	s := inventory.ExpandQuantity{Column: inventory.ColQuantity, Max: 5}
	def := inventory.EntityConsumableLot.Def()

	for _, q := range []string{"0", "6", "two"} {
		_, err := s.Expand(def, inventory.Fields{inventory.ColQuantity: q})
		assert.ErrorIs(t, err, inventory.ErrValidation, q)
	}
}

func TestExpandQuantity_DefaultLimit(t *testing.T) {
	s := inventory.NewExpandQuantity()
	def := inventory.EntityConsumableLot.Def()

	_, err := s.Expand(def, inventory.Fields{inventory.ColQuantity: "1001"})
	assert.ErrorIs(t, err, inventory.ErrValidation)

	rows, err := s.Expand(def, inventory.Fields{inventory.ColQuantity: "1000"})
	require.NoError(t, err)
	assert.Len(t, rows, 1000)
}

func TestSingleRow_PassesQuantityThrough(t *testing.T) {
	rows, err := inventory.SingleRow{}.Expand(inventory.EntityConsumableLot.Def(), inventory.Fields{inventory.ColQuantity: "3"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStrategyByName(t *testing.T) {
	s, err := inventory.StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, inventory.StrategySingle, s.Name())

	s, err = inventory.StrategyByName("expand_quantity")
	require.NoError(t, err)
	assert.Equal(t, inventory.StrategyExpandQuantity, s.Name())

	_, err = inventory.StrategyByName("explode")
	assert.ErrorIs(t, err, inventory.ErrValidation)
}
