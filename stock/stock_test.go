package stock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/query"
	"github.com/benchtrack/inventory/stock"
	"github.com/benchtrack/inventory/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2024, time.June, 10, 14, 0, 0, 0, time.UTC)

func clock() time.Time { return today }

func newEngine(t *testing.T) (*stock.Engine, *sqlite.Store) {
	store, err := sqlite.New(":memory:", sqlite.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return stock.NewEngine(store, stock.WithClock(clock)), store
}

func addProduct(t *testing.T, store *sqlite.Store, name string, consumable bool, alert string) {
	t.Helper()
	flag := "no"
	if consumable {
		flag = "yes"
	}
	_, err := store.Create(context.Background(), inventory.EntityProduct, []inventory.Fields{{
		inventory.ColName:          name,
		inventory.ColUnitOfMeasure: "each",
		inventory.ColDescription:   name,
		inventory.ColStation:       "Bench 1",
		inventory.ColIsConsumable:  flag,
		inventory.ColAlert:         alert,
	}})
	require.NoError(t, err)
}

func addLot(t *testing.T, store *sqlite.Store, product, expiry string) int64 {
	t.Helper()
	keys, err := store.Create(context.Background(), inventory.EntityConsumableLot, []inventory.Fields{{
		inventory.ColProductName:      product,
		inventory.ColLot:              "L-" + expiry,
		inventory.ColReceivedDate:     "2024-01-01",
		inventory.ColReceivedInitials: "AB",
		inventory.ColExpiryDate:       expiry,
	}})
	require.NoError(t, err)
	return keys[0].ID
}

func addEvent(t *testing.T, store *sqlite.Store, product, action, qty string) {
	t.Helper()
	_, err := store.Create(context.Background(), inventory.EntityNonConsumableEvent, []inventory.Fields{{
		inventory.ColProductName: product,
		inventory.ColQuantity:    qty,
		inventory.ColDate:        "2024-01-01",
		inventory.ColInitials:    "AB",
		inventory.ColAction:      action,
	}})
	require.NoError(t, err)
}

func productNames(levels []inventory.StockLevel) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.ProductName
	}
	return out
}

// seed builds a small catalog:
//
//	Gloves-M   non-consumable alert 5, balance 4  -> reorder
//	Tape       non-consumable alert 1, balance 0  -> out of stock, reorder
//	Reagent-A  consumable     alert 1, 2 open lots
//	Buffer     consumable     alert 0, no lots    -> out of stock, reorder
func seed(t *testing.T, store *sqlite.Store) {
	addProduct(t, store, "Gloves-M", false, "5")
	addProduct(t, store, "Tape", false, "1")
	addProduct(t, store, "Reagent-A", true, "1")
	addProduct(t, store, "Buffer", true, "0")

	addEvent(t, store, "Gloves-M", "Received", "10")
	addEvent(t, store, "Gloves-M", "Opened", "6")
	addLot(t, store, "Reagent-A", "2024-06-12")
	addLot(t, store, "Reagent-A", "2025-01-01")
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

func TestEngine_Views(t *testing.T) {
	// GIVEN: A mixed catalog
	// WHEN: Reading each derived view
	// THEN: Rows follow the counting rules, grouped by kind then name

	engine, store := newEngine(t)
	seed(t, store)
	ctx := context.Background()

	levels, err := engine.Levels(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buffer", "Reagent-A", "Gloves-M", "Tape"}, productNames(levels))

	available, err := engine.Available(ctx, inventory.Consumable)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, int64(0), available[0].Available)
	assert.Equal(t, int64(2), available[1].Available)

	out, err := engine.OutOfStock(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Buffer", "Tape"}, productNames(out))

	out, err = engine.OutOfStock(ctx, inventory.NonConsumable)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tape"}, productNames(out))

	reorder, err := engine.ReorderList(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buffer", "Gloves-M", "Tape"}, productNames(reorder))
}

func TestEngine_FinishingALotReducesAvailability(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store)
	ctx := context.Background()

	before, ok, err := engine.Level(ctx, "Reagent-A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), before.Available)
	assert.False(t, before.NeedsReorder())

	id := addLot(t, store, "Reagent-A", "2026-01-01")
	_, err = store.AdvanceLot(ctx, id, inventory.StateOpened, "2024-06-01", "AB")
	require.NoError(t, err)
	_, err = store.AdvanceLot(ctx, id, inventory.StateFinished, "2024-06-02", "AB")
	require.NoError(t, err)

	after, _, err := engine.Level(ctx, "Reagent-A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Available, "opened lots still count, finished ones do not")
}

func TestEngine_LevelOfMissingProduct(t *testing.T) {
	engine, _ := newEngine(t)

	_, ok, err := engine.Level(context.Background(), "Nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_Summary(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store)

	s, err := engine.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stock.Summary{
		AsOf:           "2024-06-10",
		Products:       4,
		Consumables:    2,
		NonConsumables: 2,
		OutOfStock:     2,
		Reorder:        3,
	}, s)
}

func TestEngine_ExpiringLots(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store)
	ctx := context.Background()

	lots, err := engine.ExpiringLots(ctx, 7)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, inventory.Date("2024-06-12"), lots[0].ExpiryDate)

	lots, err = engine.ExpiringLots(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, lots)

	_, err = engine.ExpiringLots(ctx, -1)
	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestEngine_FilteredLevels(t *testing.T) {
	engine, store := newEngine(t)
	seed(t, store)

	levels, err := engine.Levels(context.Background(), query.Spec{
		inventory.ColAvailable: {Predicate: query.GreaterThan, Value: "0"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Reagent-A", "Gloves-M"}, productNames(levels))

	_, err = engine.Levels(context.Background(), query.Spec{
		inventory.ColAvailable: {Predicate: query.Contains, Value: "0"},
	})
	assert.ErrorIs(t, err, inventory.ErrUnknownPredicate)
}

func TestEngine_UnknownKind(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Available(context.Background(), "durable")
	assert.ErrorIs(t, err, inventory.ErrValidation)

	_, err = stock.ParseKind("durable")
	assert.ErrorIs(t, err, inventory.ErrValidation)

	kind, err := stock.ParseKind("consumable")
	require.NoError(t, err)
	assert.Equal(t, inventory.Consumable, kind)
}

// =============================================================================
// ORDERING / SOURCE FAILURES
// =============================================================================

type fixedSource struct {
	levels []inventory.StockLevel
	err    error
}

func (f fixedSource) StockLevels(context.Context, inventory.Entity, query.Where) ([]inventory.StockLevel, error) {
	out := make([]inventory.StockLevel, len(f.levels))
	copy(out, f.levels)
	return out, f.err
}

func (f fixedSource) ExpiringLots(context.Context, inventory.Date) ([]inventory.ConsumableLot, error) {
	return nil, f.err
}

func TestSort_KindThenNameBytewise(t *testing.T) {
	// GIVEN: Mixed-case names from both kinds in arbitrary order
	// WHEN: Sorting
	// THEN: Consumables first; uppercase sorts before lowercase

	levels := []inventory.StockLevel{
		{ProductName: "tape", Kind: inventory.NonConsumable},
		{ProductName: "b-item", Kind: inventory.Consumable},
		{ProductName: "Tape", Kind: inventory.NonConsumable},
		{ProductName: "B-item", Kind: inventory.Consumable},
	}
	stock.Sort(levels)
	assert.Equal(t, []string{"B-item", "b-item", "Tape", "tape"}, productNames(levels))
}

func TestEngine_SourceErrorPassesThrough(t *testing.T) {
	busy := &inventory.BusyError{Op: "stock", Attempts: 3, Err: errors.New("database is locked")}
	engine := stock.NewEngine(fixedSource{err: busy})

	_, err := engine.ReorderList(context.Background())
	assert.True(t, inventory.IsRetryable(err))

	_, err = engine.Summary(context.Background())
	assert.ErrorIs(t, err, inventory.ErrBusy)
}

func TestEngine_Subscribe(t *testing.T) {
	feed := inventory.NewFeed()
	engine := stock.NewEngine(fixedSource{}, stock.WithFeed(feed))

	var seen int
	unsubscribe := engine.Subscribe(func(inventory.Change) { seen++ })
	feed.Publish(inventory.NewChange(inventory.EntityNonConsumableEvent, inventory.OpCreate, today))
	unsubscribe()
	feed.Publish(inventory.NewChange(inventory.EntityNonConsumableEvent, inventory.OpCreate, today))

	assert.Equal(t, 1, seen)
}
