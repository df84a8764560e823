package inventory_test

import (
	"math"
	"testing"

	"github.com/benchtrack/inventory/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id int64, action inventory.Action, qty int64) inventory.NonConsumableEvent {
	return inventory.NonConsumableEvent{
		ID:          id,
		ProductName: "Gloves-M",
		Quantity:    qty,
		Date:        "2024-01-01",
		Initials:    "AB",
		Action:      action,
	}
}

func TestBalance_CheckAppend_Underflow(t *testing.T) {
	// GIVEN: 10 received
	// WHEN: Opening 12
	// THEN: LedgerUnderflow carrying the totals

	b := inventory.Balance{Product: "Gloves-M"}.Apply(event(1, inventory.ActionReceived, 10))

	err := b.CheckAppend(event(2, inventory.ActionOpened, 12))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrLedgerUnderflow)

	var under *inventory.UnderflowError
	require.ErrorAs(t, err, &under)
	assert.Equal(t, int64(10), under.Received)
	assert.Equal(t, int64(0), under.Opened)
	assert.Equal(t, int64(12), under.Requested)

	assert.NoError(t, b.CheckAppend(event(3, inventory.ActionOpened, 10)), "opening exactly the balance is allowed")
}

func TestReplay(t *testing.T) {
	events := []inventory.NonConsumableEvent{
		event(1, inventory.ActionReceived, 10),
		event(2, inventory.ActionOpened, 6),
		event(3, inventory.ActionReceived, 3),
	}
	b, err := inventory.Replay("Gloves-M", events)
	require.NoError(t, err)
	assert.Equal(t, int64(13), b.Received)
	assert.Equal(t, int64(6), b.Opened)
	assert.Equal(t, int64(7), b.Available())
}

func TestReplay_PrefixOrderMatters(t *testing.T) {
	// Same totals, but the opening comes before any receipt.
	events := []inventory.NonConsumableEvent{
		event(1, inventory.ActionOpened, 2),
		event(2, inventory.ActionReceived, 10),
	}
	_, err := inventory.Replay("Gloves-M", events)
	assert.ErrorIs(t, err, inventory.ErrLedgerUnderflow)
}

func TestCheckRemoval(t *testing.T) {
	events := []inventory.NonConsumableEvent{
		event(1, inventory.ActionReceived, 10),
		event(2, inventory.ActionOpened, 6),
		event(3, inventory.ActionReceived, 5),
	}

	assert.NoError(t, inventory.CheckRemoval("Gloves-M", events, 2), "removing an opening never underflows")
	assert.NoError(t, inventory.CheckRemoval("Gloves-M", events, 3))
	assert.ErrorIs(t, inventory.CheckRemoval("Gloves-M", events, 1), inventory.ErrLedgerUnderflow)
}

func TestEvent_Delta(t *testing.T) {
	assert.Equal(t, int64(4), event(1, inventory.ActionReceived, 4).Delta())
	assert.Equal(t, int64(-4), event(1, inventory.ActionOpened, 4).Delta())
}

func TestParseAction(t *testing.T) {
	a, err := inventory.ParseAction("opened")
	require.NoError(t, err)
	assert.Equal(t, inventory.ActionOpened, a)

	_, err = inventory.ParseAction("Lost")
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestBalance_CheckAppend_ReceivedOverflow(t *testing.T) {
	// GIVEN: 10 received
	// WHEN: Receiving enough to overflow the running total
	// THEN: A validation error on quantity; the largest fitting receipt is fine

	b := inventory.Balance{Product: "Gloves-M"}.Apply(event(1, inventory.ActionReceived, 10))

	err := b.CheckAppend(event(2, inventory.ActionReceived, math.MaxInt64))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrValidation)

	var verr *inventory.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity", verr.Field)

	assert.NoError(t, b.CheckAppend(event(3, inventory.ActionReceived, math.MaxInt64-10)))
}

func TestBalance_CheckAppend_HugeOpenedIsUnderflow(t *testing.T) {
	b := inventory.Balance{Product: "Gloves-M"}.Apply(event(1, inventory.ActionReceived, 10))
	b = b.Apply(event(2, inventory.ActionOpened, 1))

	err := b.CheckAppend(event(3, inventory.ActionOpened, math.MaxInt64))
	assert.ErrorIs(t, err, inventory.ErrLedgerUnderflow)
}
