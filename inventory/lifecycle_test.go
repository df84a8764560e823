package inventory_test

import (
	"testing"

	"github.com/benchtrack/inventory/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func receivedLot() *inventory.ConsumableLot {
	return &inventory.ConsumableLot{
		ID:               7,
		ProductName:      "Reagent-A",
		Lot:              "L-001",
		ReceivedDate:     "2024-01-01",
		ReceivedInitials: "AB",
		ExpiryDate:       "2025-01-01",
	}
}

func strPtr(s string) *string { return &s }

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate(t *testing.T) {
	valid := []string{"2024-01-01", "2024-02-29", "1999-12-31"}
	for _, s := range valid {
		d, err := inventory.ParseDate(s)
		assert.NoError(t, err, s)
		assert.Equal(t, inventory.Date(s), d)
	}

	invalid := []string{"2024-02-30", "2023-02-29", "2024-2-01", "01/02/2024", "", "2024-13-01", "2024-01-01 "}
	for _, s := range invalid {
		_, err := inventory.ParseDate(s)
		assert.ErrorIs(t, err, inventory.ErrValidation, s)
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestLot_State(t *testing.T) {
	lot := receivedLot()
	assert.Equal(t, inventory.StateReceived, lot.State())

	require.NoError(t, lot.Advance(inventory.StateOpened, "2024-01-05", "CD"))
	assert.Equal(t, inventory.StateOpened, lot.State())
	assert.Equal(t, "CD", *lot.OpenedInitials)

	require.NoError(t, lot.Advance(inventory.StateFinished, "2024-02-01", "EF"))
	assert.Equal(t, inventory.StateFinished, lot.State())
	assert.NoError(t, lot.CheckLifecycle())
}

func TestLot_Advance_SkipRejected(t *testing.T) {
	// GIVEN: A lot that was only received
	// WHEN: Advancing straight to Finished
	// THEN: InvalidTransition, lot unchanged

	lot := receivedLot()
	err := lot.Advance(inventory.StateFinished, "2024-01-10", "AB")

	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInvalidTransition)
	var trErr *inventory.TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, inventory.StateReceived, trErr.From)
	assert.Equal(t, inventory.StateFinished, trErr.To)
	assert.Nil(t, lot.FinishedDate)
}

func TestLot_Advance_RegressRejected(t *testing.T) {
	lot := receivedLot()
	require.NoError(t, lot.Advance(inventory.StateOpened, "2024-01-05", "CD"))

	err := lot.Advance(inventory.StateOpened, "2024-01-06", "CD")
	assert.ErrorIs(t, err, inventory.ErrInvalidTransition)

	err = lot.Advance(inventory.StateReceived, "2024-01-06", "CD")
	assert.ErrorIs(t, err, inventory.ErrInvalidTransition)
}

func TestLot_Advance_ValidatesInput(t *testing.T) {
	lot := receivedLot()

	err := lot.Advance(inventory.StateOpened, "2024-02-30", "CD")
	assert.ErrorIs(t, err, inventory.ErrValidation)

	err = lot.Advance(inventory.StateOpened, "2024-02-01", "X")
	assert.ErrorIs(t, err, inventory.ErrValidation)

	assert.Nil(t, lot.OpenedDate, "failed advance must not stamp the lot")
}

func TestLot_CheckLifecycle_PairedNullability(t *testing.T) {
	lot := receivedLot()
	lot.OpenedDate = inventory.Date("2024-01-05").Ptr()

	err := lot.CheckLifecycle()
	require.Error(t, err)
	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Details, "opened_date")
}

func TestLot_CheckLifecycle_FinishedWithoutOpened(t *testing.T) {
	lot := receivedLot()
	lot.FinishedDate = inventory.Date("2024-01-05").Ptr()
	lot.FinishedInitials = strPtr("AB")

	assert.ErrorIs(t, lot.CheckLifecycle(), inventory.ErrInvalidTransition)
}

func TestCheckTransition(t *testing.T) {
	before := receivedLot()

	opened := *before
	require.NoError(t, opened.Advance(inventory.StateOpened, "2024-01-05", "CD"))
	assert.NoError(t, inventory.CheckTransition(before, &opened), "one step forward")
	assert.NoError(t, inventory.CheckTransition(&opened, &opened), "same state")
	assert.ErrorIs(t, inventory.CheckTransition(&opened, before), inventory.ErrInvalidTransition, "clearing opened regresses")

	finished := opened
	require.NoError(t, finished.Advance(inventory.StateFinished, "2024-01-09", "CD"))
	assert.ErrorIs(t, inventory.CheckTransition(before, &finished), inventory.ErrInvalidTransition, "two steps")
}

func TestParseLotState(t *testing.T) {
	s, err := inventory.ParseLotState("finished")
	require.NoError(t, err)
	assert.Equal(t, inventory.StateFinished, s)

	_, err = inventory.ParseLotState("Closed")
	assert.ErrorIs(t, err, inventory.ErrValidation)
}
