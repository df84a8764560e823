/*
Package inventory provides the data model and invariants of the stock ledger.

PURPOSE:
  This package defines what states are representable. Products are the
  catalog; consumables are tracked as individual lots moving through a
  Received -> Opened -> Finished lifecycle, non-consumables as an append-only
  ledger of Received/Opened quantity events. Everything here is pure Go:
  no I/O, no SQL. The store runs these checks inside its write transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product:            catalog entry, identified by its name (natural key)
  - ConsumableLot:      one received batch of a consumable product
  - NonConsumableEvent: immutable ledger entry (Received adds, Opened subtracts)
  - StockLevel:         derived row, computed on read, never stored
  - Key:                match key for update/delete (name or surrogate id)

INVARIANTS (enforced at mutation time):
  1. Lots reference an existing consumable product, events an existing
     non-consumable product.
  2. Lot dates form a prefix of [received, opened, finished].
  3. Each (date, initials) pair on a lot is both present or both absent.
  4. For every product, cumulative opened never exceeds cumulative received.

SEE ALSO:
  - schema.go:    enumerated entities and columns
  - lifecycle.go: lot state machine
  - ledger.go:    non-consumable balance rules
  - errors.go:    error taxonomy
*/
package inventory

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT - Catalog entry
// =============================================================================

// ProductKind distinguishes how a product's stock is tracked.
type ProductKind string

const (
	Consumable    ProductKind = "consumable"
	NonConsumable ProductKind = "non_consumable"
)

// Product is identified by Name. IsConsumable must not change once lots or
// events reference the product.
type Product struct {
	Name          string          `db:"name" json:"name" validate:"required,max=200"`
	AlsItem       *string         `db:"als_item" json:"als_item,omitempty"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price" validate:"gte=0"`
	UnitOfMeasure string          `db:"unit_of_measure" json:"unit_of_measure" validate:"required"`
	Description   string          `db:"description" json:"description" validate:"required"`
	Station       string          `db:"station" json:"station" validate:"required"`
	IsConsumable  bool            `db:"is_consumable" json:"is_consumable"`
	Alert         int64           `db:"alert" json:"alert" validate:"gte=0"`
	VendorItem    *string         `db:"vendor_item" json:"vendor_item,omitempty"`
	Vendor        *string         `db:"vendor" json:"vendor,omitempty"`
	PO            *string         `db:"po" json:"po,omitempty"`
}

// Kind reports whether the product is tracked as lots or as a ledger.
func (p Product) Kind() ProductKind {
	if p.IsConsumable {
		return Consumable
	}
	return NonConsumable
}

func (p Product) Entity() Entity { return EntityProduct }
func (p Product) Key() Key       { return NameKey(p.Name) }

// =============================================================================
// CONSUMABLE LOT - One received batch
// =============================================================================

type ConsumableLot struct {
	ID               int64   `db:"id" json:"id"`
	ProductName      string  `db:"product_name" json:"product_name" validate:"required"`
	Lot              string  `db:"lot" json:"lot" validate:"required"`
	ReceivedDate     Date    `db:"received_date" json:"received_date" validate:"calendardate"`
	ReceivedInitials string  `db:"received_initials" json:"received_initials" validate:"min=2,max=5"`
	ExpiryDate       Date    `db:"expiry_date" json:"expiry_date" validate:"calendardate"`
	OpenedDate       *Date   `db:"opened_date" json:"opened_date,omitempty" validate:"omitempty,calendardate"`
	OpenedInitials   *string `db:"opened_initials" json:"opened_initials,omitempty" validate:"omitempty,min=2,max=5"`
	FinishedDate     *Date   `db:"finished_date" json:"finished_date,omitempty" validate:"omitempty,calendardate"`
	FinishedInitials *string `db:"finished_initials" json:"finished_initials,omitempty" validate:"omitempty,min=2,max=5"`
	CreatedAt        string  `db:"created_at" json:"created_at"`
}

func (l ConsumableLot) Entity() Entity { return EntityConsumableLot }
func (l ConsumableLot) Key() Key       { return IDKey(l.ID) }

// =============================================================================
// NON-CONSUMABLE EVENT - Immutable ledger entry
// =============================================================================

type NonConsumableEvent struct {
	ID          int64  `db:"id" json:"id"`
	ProductName string `db:"product_name" json:"product_name" validate:"required"`
	Quantity    int64  `db:"quantity" json:"quantity" validate:"gt=0"`
	Date        Date   `db:"date" json:"date" validate:"calendardate"`
	Initials    string `db:"initials" json:"initials" validate:"min=2,max=5"`
	Action      Action `db:"action" json:"action" validate:"oneof=Received Opened"`
	CreatedAt   string `db:"created_at" json:"created_at"`
}

func (e NonConsumableEvent) Entity() Entity { return EntityNonConsumableEvent }
func (e NonConsumableEvent) Key() Key       { return IDKey(e.ID) }

// =============================================================================
// STOCK LEVEL - Derived, read-only
// =============================================================================

// StockLevel is one row of the derived views. For consumables Available is
// the number of unfinished lots, for non-consumables the ledger balance.
type StockLevel struct {
	ProductName   string      `db:"product_name" json:"product_name"`
	Kind          ProductKind `db:"kind" json:"kind"`
	UnitOfMeasure string      `db:"unit_of_measure" json:"unit_of_measure"`
	Station       string      `db:"station" json:"station"`
	Alert         int64       `db:"alert" json:"alert"`
	Available     int64       `db:"available" json:"available"`
}

func (s StockLevel) OutOfStock() bool   { return s.Available <= 0 }
func (s StockLevel) NeedsReorder() bool { return s.Available <= s.Alert }

// Every derived view shares the stock_levels row shape.
func (s StockLevel) Entity() Entity { return ViewStockLevels }
func (s StockLevel) Key() Key       { return NameKey(s.ProductName) }

// =============================================================================
// RECORD / KEY
// =============================================================================

// Record is any row returned by a search.
type Record interface {
	Entity() Entity
	Key() Key
}

// Key matches a single row: products by name, lots and events by id.
type Key struct {
	Name string
	ID   int64
}

func NameKey(name string) Key { return Key{Name: name} }
func IDKey(id int64) Key      { return Key{ID: id} }

func (k Key) IsZero() bool { return k.Name == "" && k.ID == 0 }

func (k Key) String() string {
	if k.Name != "" {
		return k.Name
	}
	return strconv.FormatInt(k.ID, 10)
}

// GoString keeps keys readable in test failure output.
func (k Key) GoString() string { return fmt.Sprintf("Key(%s)", k.String()) }
