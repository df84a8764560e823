package sqlite

import (
	"context"
	"strings"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/query"
	"github.com/jmoiron/sqlx"
)

// selectList is the entity's columns joined for a SELECT. Identifiers come
// from the schema only.
func selectList(entity inventory.Entity) string {
	cols := entity.Def().ColumnNames()
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = string(entity) + "." + string(c)
	}
	return strings.Join(parts, ", ")
}

func searchSQL(def *inventory.EntityDef, where query.Where) string {
	return "SELECT " + selectList(def.Name) + " FROM " + string(def.Name) + where.Clause() + " ORDER BY " + def.OrderBy
}

// Search returns a snapshot of the rows of def matching where, in the
// entity's fixed order.
func (s *Store) Search(ctx context.Context, def *inventory.EntityDef, where query.Where) ([]inventory.Record, error) {
	q := searchSQL(def, where)
	var out []inventory.Record

	err := s.read(ctx, "search "+string(def.Name), func(db sqlx.QueryerContext) error {
		out = out[:0]
		switch def.Name {
		case inventory.EntityProduct:
			var rows []inventory.Product
			if err := sqlx.SelectContext(ctx, db, &rows, q, where.Args...); err != nil {
				return err
			}
			for _, r := range rows {
				out = append(out, r)
			}
		case inventory.EntityConsumableLot:
			var rows []inventory.ConsumableLot
			if err := sqlx.SelectContext(ctx, db, &rows, q, where.Args...); err != nil {
				return err
			}
			for _, r := range rows {
				out = append(out, r)
			}
		case inventory.EntityNonConsumableEvent:
			var rows []inventory.NonConsumableEvent
			if err := sqlx.SelectContext(ctx, db, &rows, q, where.Args...); err != nil {
				return err
			}
			for _, r := range rows {
				out = append(out, r)
			}
		default:
			var rows []inventory.StockLevel
			if err := sqlx.SelectContext(ctx, db, &rows, q, where.Args...); err != nil {
				return err
			}
			for _, r := range rows {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StockLevels reads one of the derived views.
func (s *Store) StockLevels(ctx context.Context, view inventory.Entity, where query.Where) ([]inventory.StockLevel, error) {
	def := view.Def()
	if !def.ReadOnly {
		return nil, &inventory.ValidationError{Entity: view, Reason: "not a stock view"}
	}
	var rows []inventory.StockLevel
	err := s.read(ctx, "stock "+string(view), func(db sqlx.QueryerContext) error {
		rows = rows[:0]
		return sqlx.SelectContext(ctx, db, &rows, searchSQL(def, where), where.Args...)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpiringLots returns unfinished lots whose expiry date is on or before
// by, soonest first.
func (s *Store) ExpiringLots(ctx context.Context, by inventory.Date) ([]inventory.ConsumableLot, error) {
	var lots []inventory.ConsumableLot
	err := s.read(ctx, "expiring lots", func(db sqlx.QueryerContext) error {
		lots = lots[:0]
		return sqlx.SelectContext(ctx, db, &lots, `
			SELECT `+selectList(inventory.EntityConsumableLot)+`
			FROM consumable_lots
			WHERE consumable_lots.finished_date IS NULL AND consumable_lots.expiry_date <= ?
			ORDER BY consumable_lots.expiry_date ASC, consumable_lots.id ASC`, string(by))
	})
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// Lot returns the lot with id, or a StaleWriteError when it is gone.
func (s *Store) Lot(ctx context.Context, id int64) (*inventory.ConsumableLot, error) {
	var l *inventory.ConsumableLot
	err := s.read(ctx, "get lot", func(db sqlx.QueryerContext) error {
		var err error
		l, err = getLot(ctx, db, id)
		return err
	})
	return l, err
}

// Balance returns the ledger totals for a non-consumable product.
func (s *Store) Balance(ctx context.Context, product string) (inventory.Balance, error) {
	var b inventory.Balance
	err := s.read(ctx, "balance", func(db sqlx.QueryerContext) error {
		var err error
		b, err = balance(ctx, db, product)
		return err
	})
	return b, err
}

// Ledger returns a product's events in insertion order.
func (s *Store) Ledger(ctx context.Context, product string) ([]inventory.NonConsumableEvent, error) {
	var events []inventory.NonConsumableEvent
	err := s.read(ctx, "ledger", func(db sqlx.QueryerContext) error {
		var err error
		events, err = ledger(ctx, db, product)
		return err
	})
	return events, err
}
