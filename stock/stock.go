/*
stock.go - Aggregation engine

PURPOSE:
  Turns raw lot and ledger history into stock signals: available quantity,
  out of stock, reorder candidates, expiring lots and a summary. Nothing is
  cached; every call reads the derived views as of now.

RULES:
  Consumables:     available = count(lots with no finished date)
  Non-consumables: available = sum(received) - sum(opened)
  Out of stock:    available <= 0
  Reorder:         available <= alert

ORDERING:
  Kind first ("consumable" before "non_consumable"), then product name,
  byte-wise. Ties keep the store's order.

CHANGE NOTIFICATION:
  Subscribe forwards committed changes from the shared feed so a dashboard
  can re-poll. The engine holds no list of consumers of its own.

SEE ALSO:
  - store/sqlite/schema.go: the stock_levels view and its filters
  - inventory/ledger.go:    the balance rule applied at write time
*/
package stock

import (
	"context"
	"sort"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/benchtrack/inventory/query"
)

// Source reads the derived views.
type Source interface {
	StockLevels(ctx context.Context, view inventory.Entity, where query.Where) ([]inventory.StockLevel, error)
	ExpiringLots(ctx context.Context, by inventory.Date) ([]inventory.ConsumableLot, error)
}

// Summary is a point-in-time count of the catalog and its stock signals.
type Summary struct {
	AsOf           inventory.Date `json:"as_of"`
	Products       int            `json:"products"`
	Consumables    int            `json:"consumables"`
	NonConsumables int            `json:"non_consumables"`
	OutOfStock     int            `json:"out_of_stock"`
	Reorder        int            `json:"reorder"`
}

type Engine struct {
	src      Source
	compiler *query.Compiler
	feed     *inventory.Feed
	now      func() time.Time
	log      *logger.Logger
}

type Option func(*Engine)

func WithFeed(f *inventory.Feed) Option {
	return func(e *Engine) { e.feed = f }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithCompiler(c *query.Compiler) Option {
	return func(e *Engine) { e.compiler = c }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:      src,
		compiler: query.NewCompiler(),
		feed:     inventory.NewFeed(),
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("stock")
	return e
}

// =============================================================================
// VIEWS
// =============================================================================

// Levels returns every product's stock level, optionally filtered.
func (e *Engine) Levels(ctx context.Context, spec query.Spec) ([]inventory.StockLevel, error) {
	return e.view(ctx, inventory.ViewStockLevels, spec)
}

// Available returns the stock levels of one product kind.
func (e *Engine) Available(ctx context.Context, kind inventory.ProductKind) ([]inventory.StockLevel, error) {
	view, err := pick(kind, inventory.ViewAvailableConsumables, inventory.ViewAvailableNonConsumables)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, view, nil)
}

// OutOfStock returns products with nothing available. An empty kind means
// both kinds.
func (e *Engine) OutOfStock(ctx context.Context, kind inventory.ProductKind) ([]inventory.StockLevel, error) {
	if kind == "" {
		return e.view(ctx, inventory.ViewOutOfStock, nil)
	}
	view, err := pick(kind, inventory.ViewOutOfStockConsumables, inventory.ViewOutOfStockNonConsumables)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, view, nil)
}

// ReorderList returns products at or below their alert threshold.
func (e *Engine) ReorderList(ctx context.Context) ([]inventory.StockLevel, error) {
	return e.view(ctx, inventory.ViewReorderList, nil)
}

// Level returns one product's stock level. ok is false when the product
// does not exist.
func (e *Engine) Level(ctx context.Context, product string) (level inventory.StockLevel, ok bool, err error) {
	rows, err := e.view(ctx, inventory.ViewStockLevels, query.Spec{
		inventory.ColProductName: {Predicate: query.Exactly, Value: product},
	})
	if err != nil || len(rows) == 0 {
		return inventory.StockLevel{}, false, err
	}
	return rows[0], true, nil
}

// ExpiringLots returns unfinished lots expiring within the given number of
// days from today, soonest first. Already expired lots are included.
func (e *Engine) ExpiringLots(ctx context.Context, within int) ([]inventory.ConsumableLot, error) {
	if within < 0 {
		return nil, &inventory.ValidationError{
			Entity: inventory.EntityConsumableLot,
			Field:  "within",
			Reason: "must not be negative",
		}
	}
	by := inventory.DateOf(e.now().AddDate(0, 0, within))
	lots, err := e.src.ExpiringLots(ctx, by)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Int("within", within).Int("lots", len(lots)).Msg("expiring lots")
	return lots, nil
}

// Summary counts products and stock signals from a single read.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	rows, err := e.src.StockLevels(ctx, inventory.ViewStockLevels, query.Where{})
	if err != nil {
		return Summary{}, err
	}
	s := Summary{AsOf: inventory.DateOf(e.now()), Products: len(rows)}
	for _, r := range rows {
		switch r.Kind {
		case inventory.Consumable:
			s.Consumables++
		case inventory.NonConsumable:
			s.NonConsumables++
		}
		if r.OutOfStock() {
			s.OutOfStock++
		}
		if r.NeedsReorder() {
			s.Reorder++
		}
	}
	return s, nil
}

// Subscribe calls fn after every committed change. The returned function
// removes the subscription.
func (e *Engine) Subscribe(fn func(inventory.Change)) (unsubscribe func()) {
	return e.feed.Subscribe(fn)
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) view(ctx context.Context, view inventory.Entity, spec query.Spec) ([]inventory.StockLevel, error) {
	where, err := e.compiler.Compile(view.Def(), spec, "")
	if err != nil {
		return nil, err
	}
	rows, err := e.src.StockLevels(ctx, view, where)
	if err != nil {
		return nil, err
	}
	Sort(rows)
	return rows, nil
}

// Sort orders levels by kind, then product name, keeping ties stable.
func Sort(levels []inventory.StockLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Kind != levels[j].Kind {
			return levels[i].Kind < levels[j].Kind
		}
		return levels[i].ProductName < levels[j].ProductName
	})
}

func pick(kind inventory.ProductKind, consumable, nonConsumable inventory.Entity) (inventory.Entity, error) {
	switch kind {
	case inventory.Consumable:
		return consumable, nil
	case inventory.NonConsumable:
		return nonConsumable, nil
	}
	return "", &inventory.ValidationError{
		Field:  string(inventory.ColKind),
		Reason: "must be consumable or non_consumable",
		Value:  string(kind),
	}
}

// ParseKind reads a product kind from a query parameter.
func ParseKind(s string) (inventory.ProductKind, error) {
	if s == "" {
		return "", nil
	}
	if _, err := pick(inventory.ProductKind(s), "", ""); err != nil {
		return "", err
	}
	return inventory.ProductKind(s), nil
}
