package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benchtrack/inventory/inventory"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// =============================================================================
// CREATE
// =============================================================================

// Create decodes every row, then inserts them all in one transaction. A
// failure on any row leaves the store unchanged.
func (s *Store) Create(ctx context.Context, entity inventory.Entity, rows []inventory.Fields) ([]inventory.Key, error) {
	if len(rows) == 0 {
		return nil, &inventory.ValidationError{Entity: entity, Reason: "nothing to create"}
	}

	switch entity {
	case inventory.EntityProduct:
		products := make([]inventory.Product, len(rows))
		for i, f := range rows {
			p, err := inventory.DecodeProduct(f)
			if err != nil {
				return nil, err
			}
			products[i] = p
		}
		return s.CreateProducts(ctx, products)

	case inventory.EntityConsumableLot:
		lots := make([]inventory.ConsumableLot, len(rows))
		for i, f := range rows {
			l, err := inventory.DecodeLot(f)
			if err != nil {
				return nil, err
			}
			lots[i] = l
		}
		return s.CreateLots(ctx, lots)

	case inventory.EntityNonConsumableEvent:
		events := make([]inventory.NonConsumableEvent, len(rows))
		for i, f := range rows {
			ev, err := inventory.DecodeEvent(f)
			if err != nil {
				return nil, err
			}
			events[i] = ev
		}
		return s.AppendEvents(ctx, events)
	}

	return nil, &inventory.ValidationError{Entity: entity, Reason: "entity is read-only"}
}

// CreateProducts inserts catalog entries.
func (s *Store) CreateProducts(ctx context.Context, products []inventory.Product) ([]inventory.Key, error) {
	for _, p := range products {
		if err := inventory.Validate(inventory.EntityProduct, p); err != nil {
			return nil, err
		}
	}

	var keys []inventory.Key
	err := s.write(ctx, "create products", func(tx *sqlx.Tx) error {
		keys = keys[:0]
		for _, p := range products {
			if err := insertProduct(ctx, tx, p); err != nil {
				return err
			}
			keys = append(keys, p.Key())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateLots inserts received lots. Each lot must reference an existing
// consumable product.
func (s *Store) CreateLots(ctx context.Context, lots []inventory.ConsumableLot) ([]inventory.Key, error) {
	for i := range lots {
		if err := inventory.Validate(inventory.EntityConsumableLot, lots[i]); err != nil {
			return nil, err
		}
		if err := lots[i].CheckLifecycle(); err != nil {
			return nil, err
		}
	}

	var keys []inventory.Key
	err := s.write(ctx, "create lots", func(tx *sqlx.Tx) error {
		keys = keys[:0]
		createdAt := inventory.Timestamp(s.now())
		for _, l := range lots {
			if err := requireProduct(ctx, tx, inventory.EntityConsumableLot, l.ProductName); err != nil {
				return err
			}
			l.CreatedAt = createdAt
			id, err := insertLot(ctx, tx, l)
			if err != nil {
				return err
			}
			keys = append(keys, inventory.IDKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// AppendEvents adds ledger events in order. Each Opened event is checked
// against the balance including the events before it in the same batch.
func (s *Store) AppendEvents(ctx context.Context, events []inventory.NonConsumableEvent) ([]inventory.Key, error) {
	for _, ev := range events {
		if err := inventory.Validate(inventory.EntityNonConsumableEvent, ev); err != nil {
			return nil, err
		}
	}

	var keys []inventory.Key
	err := s.write(ctx, "append events", func(tx *sqlx.Tx) error {
		keys = keys[:0]
		createdAt := inventory.Timestamp(s.now())
		for _, ev := range events {
			if err := requireProduct(ctx, tx, inventory.EntityNonConsumableEvent, ev.ProductName); err != nil {
				return err
			}
			bal, err := balance(ctx, tx, ev.ProductName)
			if err != nil {
				return err
			}
			if err := bal.CheckAppend(ev); err != nil {
				return err
			}
			ev.CreatedAt = createdAt
			id, err := insertEvent(ctx, tx, ev)
			if err != nil {
				return err
			}
			keys = append(keys, inventory.IDKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// AdvanceLot moves a lot one lifecycle step forward.
func (s *Store) AdvanceLot(ctx context.Context, id int64, to inventory.LotState, date inventory.Date, initials string) (inventory.ConsumableLot, error) {
	var out inventory.ConsumableLot
	err := s.write(ctx, "advance lot", func(tx *sqlx.Tx) error {
		lot, err := getLot(ctx, tx, id)
		if err != nil {
			return err
		}
		before := *lot
		if err := lot.Advance(to, date, initials); err != nil {
			return err
		}
		if err := updateLot(ctx, tx, &before, lot); err != nil {
			return err
		}
		out = *lot
		return nil
	})
	return out, err
}

// =============================================================================
// UPDATE
// =============================================================================

// Update changes the row matching key. Zero matching rows is a StaleWrite.
func (s *Store) Update(ctx context.Context, entity inventory.Entity, key inventory.Key, f inventory.Fields) error {
	switch entity {
	case inventory.EntityProduct:
		return s.write(ctx, "update product", func(tx *sqlx.Tx) error {
			before, err := getProduct(ctx, tx, key.Name)
			if err != nil {
				return err
			}
			if before == nil {
				return &inventory.StaleWriteError{Entity: entity, Key: key}
			}
			after := *before
			if err := inventory.ApplyProduct(&after, f); err != nil {
				return err
			}
			deps, err := dependents(ctx, tx, before.Name)
			if err != nil {
				return err
			}
			if err := inventory.CheckProductChange(before, &after, deps); err != nil {
				return err
			}
			return updateProduct(ctx, tx, before.Name, after)
		})

	case inventory.EntityConsumableLot:
		return s.write(ctx, "update lot", func(tx *sqlx.Tx) error {
			before, err := getLot(ctx, tx, key.ID)
			if err != nil {
				return err
			}
			after := *before
			if err := inventory.ApplyLot(&after, f); err != nil {
				return err
			}
			if err := inventory.CheckTransition(before, &after); err != nil {
				return err
			}
			if after.ProductName != before.ProductName {
				if err := requireProduct(ctx, tx, entity, after.ProductName); err != nil {
					return err
				}
			}
			return updateLot(ctx, tx, before, &after)
		})

	case inventory.EntityNonConsumableEvent:
		return &inventory.ValidationError{Entity: entity, Reason: "ledger events are immutable; delete and re-enter instead"}
	}

	return &inventory.ValidationError{Entity: entity, Reason: "entity is read-only"}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes the row matching key.
func (s *Store) Delete(ctx context.Context, entity inventory.Entity, key inventory.Key) error {
	switch entity {
	case inventory.EntityProduct:
		return s.write(ctx, "delete product", func(tx *sqlx.Tx) error {
			deps, err := dependents(ctx, tx, key.Name)
			if err != nil {
				return err
			}
			if deps > 0 {
				return &inventory.ReferentialError{
					Entity:  entity,
					Product: key.Name,
					Reason:  fmt.Sprintf("%d lot(s) or event(s) still reference it", deps),
				}
			}
			return expectOne(tx.ExecContext(ctx, `DELETE FROM products WHERE name = ?`, key.Name))(entity, key)
		})

	case inventory.EntityConsumableLot:
		return s.write(ctx, "delete lot", func(tx *sqlx.Tx) error {
			return expectOne(tx.ExecContext(ctx, `DELETE FROM consumable_lots WHERE id = ?`, key.ID))(entity, key)
		})

	case inventory.EntityNonConsumableEvent:
		return s.write(ctx, "delete event", func(tx *sqlx.Tx) error {
			var product string
			err := tx.GetContext(ctx, &product, `SELECT product_name FROM non_consumable_events WHERE id = ?`, key.ID)
			if errors.Is(err, sql.ErrNoRows) {
				return &inventory.StaleWriteError{Entity: entity, Key: key}
			}
			if err != nil {
				return err
			}
			events, err := ledger(ctx, tx, product)
			if err != nil {
				return err
			}
			if err := inventory.CheckRemoval(product, events, key.ID); err != nil {
				return err
			}
			return expectOne(tx.ExecContext(ctx, `DELETE FROM non_consumable_events WHERE id = ?`, key.ID))(entity, key)
		})
	}

	return &inventory.ValidationError{Entity: entity, Reason: "entity is read-only"}
}

// =============================================================================
// ROW HELPERS
// =============================================================================

const insertProductSQL = `
	INSERT INTO products
	(name, als_item, unit_price, unit_of_measure, description, station,
	 is_consumable, alert, vendor_item, vendor, po)
	VALUES (:name, :als_item, :unit_price, :unit_of_measure, :description, :station,
	 :is_consumable, :alert, :vendor_item, :vendor, :po)
`

func insertProduct(ctx context.Context, tx *sqlx.Tx, p inventory.Product) error {
	_, err := tx.NamedExecContext(ctx, insertProductSQL, p)
	if isUniqueViolation(err) {
		return &inventory.DuplicateKeyError{Entity: inventory.EntityProduct, Key: p.Name}
	}
	return err
}

func updateProduct(ctx context.Context, tx *sqlx.Tx, name string, p inventory.Product) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products SET
			name = ?, als_item = ?, unit_price = ?, unit_of_measure = ?, description = ?,
			station = ?, is_consumable = ?, alert = ?, vendor_item = ?, vendor = ?, po = ?
		WHERE name = ?`,
		p.Name, p.AlsItem, p.UnitPrice, p.UnitOfMeasure, p.Description,
		p.Station, p.IsConsumable, p.Alert, p.VendorItem, p.Vendor, p.PO,
		name,
	)
	if isUniqueViolation(err) {
		return &inventory.DuplicateKeyError{Entity: inventory.EntityProduct, Key: p.Name}
	}
	return expectOne(res, err)(inventory.EntityProduct, inventory.NameKey(name))
}

const insertLotSQL = `
	INSERT INTO consumable_lots
	(product_name, lot, received_date, received_initials, expiry_date,
	 opened_date, opened_initials, finished_date, finished_initials, created_at)
	VALUES (:product_name, :lot, :received_date, :received_initials, :expiry_date,
	 :opened_date, :opened_initials, :finished_date, :finished_initials, :created_at)
`

func insertLot(ctx context.Context, tx *sqlx.Tx, l inventory.ConsumableLot) (int64, error) {
	res, err := tx.NamedExecContext(ctx, insertLotSQL, l)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// updateLot writes after over before. The WHERE clause repeats the
// lifecycle columns read earlier so a concurrent change matches zero rows.
func updateLot(ctx context.Context, tx *sqlx.Tx, before, after *inventory.ConsumableLot) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE consumable_lots SET
			product_name = ?, lot = ?, received_date = ?, received_initials = ?, expiry_date = ?,
			opened_date = ?, opened_initials = ?, finished_date = ?, finished_initials = ?
		WHERE id = ? AND opened_date IS ? AND finished_date IS ?`,
		after.ProductName, after.Lot, after.ReceivedDate, after.ReceivedInitials, after.ExpiryDate,
		after.OpenedDate, after.OpenedInitials, after.FinishedDate, after.FinishedInitials,
		before.ID, before.OpenedDate, before.FinishedDate,
	)
	return expectOne(res, err)(inventory.EntityConsumableLot, inventory.IDKey(before.ID))
}

const insertEventSQL = `
	INSERT INTO non_consumable_events
	(product_name, quantity, date, initials, action, created_at)
	VALUES (:product_name, :quantity, :date, :initials, :action, :created_at)
`

func insertEvent(ctx context.Context, tx *sqlx.Tx, ev inventory.NonConsumableEvent) (int64, error) {
	res, err := tx.NamedExecContext(ctx, insertEventSQL, ev)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, name string) (*inventory.Product, error) {
	var p inventory.Product
	err := sqlx.GetContext(ctx, q, &p, `SELECT `+selectList(inventory.EntityProduct)+` FROM products WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func getLot(ctx context.Context, q sqlx.QueryerContext, id int64) (*inventory.ConsumableLot, error) {
	var l inventory.ConsumableLot
	err := sqlx.GetContext(ctx, q, &l, `SELECT `+selectList(inventory.EntityConsumableLot)+` FROM consumable_lots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.StaleWriteError{Entity: inventory.EntityConsumableLot, Key: inventory.IDKey(id)}
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func requireProduct(ctx context.Context, q sqlx.QueryerContext, entity inventory.Entity, name string) error {
	p, err := getProduct(ctx, q, name)
	if err != nil {
		return err
	}
	return inventory.RequireKind(entity, name, p)
}

func dependents(ctx context.Context, q sqlx.QueryerContext, name string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		SELECT (SELECT COUNT(*) FROM consumable_lots WHERE product_name = ?)
		     + (SELECT COUNT(*) FROM non_consumable_events WHERE product_name = ?)`,
		name, name)
	return n, err
}

func balance(ctx context.Context, q sqlx.QueryerContext, product string) (inventory.Balance, error) {
	b := inventory.Balance{Product: product}
	err := sqlx.GetContext(ctx, q, &b, `
		SELECT
			COALESCE(SUM(CASE WHEN action = 'Received' THEN quantity ELSE 0 END), 0) AS received,
			COALESCE(SUM(CASE WHEN action = 'Opened' THEN quantity ELSE 0 END), 0) AS opened
		FROM non_consumable_events
		WHERE product_name = ?`, product)
	return b, err
}

func ledger(ctx context.Context, q sqlx.QueryerContext, product string) ([]inventory.NonConsumableEvent, error) {
	var events []inventory.NonConsumableEvent
	err := sqlx.SelectContext(ctx, q, &events,
		`SELECT `+selectList(inventory.EntityNonConsumableEvent)+` FROM non_consumable_events WHERE product_name = ? ORDER BY id ASC`,
		product)
	return events, err
}

// expectOne turns a zero-row write into a StaleWrite.
func expectOne(res sql.Result, err error) func(inventory.Entity, inventory.Key) error {
	return func(entity inventory.Entity, key inventory.Key) error {
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &inventory.StaleWriteError{Entity: entity, Key: key}
		}
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
