/*
schema.go - Enumerated entities and columns

PURPOSE:
  The complete, compile-time list of entities (tables and derived views) and
  their columns. Query construction only ever takes identifiers from here;
  user input is bound as parameters, never spliced into SQL text.

ENTITIES:
  products                       catalog, key = name
  consumable_lots                lots, key = id, insertion order
  non_consumable_events          ledger, key = id, insertion order
  stock_levels                   every product with its available quantity
  available_consumables          stock_levels for consumables
  available_non_consumables      stock_levels for non-consumables
  out_of_stock_consumables       available <= 0, consumables
  out_of_stock_non_consumables   available <= 0, non-consumables
  out_of_stock                   union of both
  reorder_list                   available <= alert, both kinds

SEE ALSO:
  - store/sqlite/schema.go: DDL for the same tables and views
  - query/compiler.go:      uses ColumnType to pick predicates
*/
package inventory

import (
	"strconv"
	"strings"
)

type Entity string

const (
	EntityProduct            Entity = "products"
	EntityConsumableLot      Entity = "consumable_lots"
	EntityNonConsumableEvent Entity = "non_consumable_events"

	ViewStockLevels               Entity = "stock_levels"
	ViewAvailableConsumables      Entity = "available_consumables"
	ViewAvailableNonConsumables   Entity = "available_non_consumables"
	ViewOutOfStockConsumables     Entity = "out_of_stock_consumables"
	ViewOutOfStockNonConsumables  Entity = "out_of_stock_non_consumables"
	ViewOutOfStock                Entity = "out_of_stock"
	ViewReorderList               Entity = "reorder_list"
)

type Column string

const (
	ColName          Column = "name"
	ColAlsItem       Column = "als_item"
	ColUnitPrice     Column = "unit_price"
	ColUnitOfMeasure Column = "unit_of_measure"
	ColDescription   Column = "description"
	ColStation       Column = "station"
	ColIsConsumable  Column = "is_consumable"
	ColAlert         Column = "alert"
	ColVendorItem    Column = "vendor_item"
	ColVendor        Column = "vendor"
	ColPO            Column = "po"

	ColID               Column = "id"
	ColProductName      Column = "product_name"
	ColLot              Column = "lot"
	ColReceivedDate     Column = "received_date"
	ColReceivedInitials Column = "received_initials"
	ColExpiryDate       Column = "expiry_date"
	ColOpenedDate       Column = "opened_date"
	ColOpenedInitials   Column = "opened_initials"
	ColFinishedDate     Column = "finished_date"
	ColFinishedInitials Column = "finished_initials"
	ColCreatedAt        Column = "created_at"

	ColQuantity Column = "quantity"
	ColDate     Column = "date"
	ColInitials Column = "initials"
	ColAction   Column = "action"

	ColKind      Column = "kind"
	ColAvailable Column = "available"
)

// ColumnType is the semantic type that decides which predicates apply.
type ColumnType int

const (
	ColumnText ColumnType = iota + 1
	ColumnInteger
	ColumnFloat
	ColumnDate
)

func (t ColumnType) String() string {
	switch t {
	case ColumnText:
		return "text"
	case ColumnInteger:
		return "integer"
	case ColumnFloat:
		return "float"
	case ColumnDate:
		return "date"
	}
	return "invalid"
}

func (t ColumnType) IsNumeric() bool { return t == ColumnInteger || t == ColumnFloat }

type ColumnDef struct {
	Name     Column
	Type     ColumnType
	Writable bool
	Nullable bool
}

// EntityDef describes one table or view.
type EntityDef struct {
	Name        Entity
	Columns     []ColumnDef
	KeyColumn   Column
	QuickSearch Column
	// OrderBy is a fixed clause; never built from input.
	OrderBy  string
	ReadOnly bool
}

// Column returns the definition of name, if the entity has it.
func (d *EntityDef) Column(name Column) (ColumnDef, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns the columns in display order.
func (d *EntityDef) ColumnNames() []Column {
	names := make([]Column, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ParseKey turns the raw key from a caller into a Key for this entity.
func (d *EntityDef) ParseKey(raw string) (Key, error) {
	if d.KeyColumn == ColID {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return Key{}, &ValidationError{Entity: d.Name, Field: string(ColID), Reason: "must be a positive integer", Value: raw}
		}
		return IDKey(id), nil
	}
	if strings.TrimSpace(raw) == "" {
		return Key{}, &ValidationError{Entity: d.Name, Field: string(d.KeyColumn), Reason: "is required"}
	}
	return NameKey(raw), nil
}

// =============================================================================
// SCHEMA
// =============================================================================

var productColumns = []ColumnDef{
	{Name: ColName, Type: ColumnText, Writable: true},
	{Name: ColAlsItem, Type: ColumnText, Writable: true, Nullable: true},
	{Name: ColUnitPrice, Type: ColumnFloat, Writable: true},
	{Name: ColUnitOfMeasure, Type: ColumnText, Writable: true},
	{Name: ColDescription, Type: ColumnText, Writable: true},
	{Name: ColStation, Type: ColumnText, Writable: true},
	{Name: ColIsConsumable, Type: ColumnInteger, Writable: true},
	{Name: ColAlert, Type: ColumnInteger, Writable: true},
	{Name: ColVendorItem, Type: ColumnText, Writable: true, Nullable: true},
	{Name: ColVendor, Type: ColumnText, Writable: true, Nullable: true},
	{Name: ColPO, Type: ColumnText, Writable: true, Nullable: true},
}

var lotColumns = []ColumnDef{
	{Name: ColID, Type: ColumnInteger},
	{Name: ColProductName, Type: ColumnText, Writable: true},
	{Name: ColLot, Type: ColumnText, Writable: true},
	{Name: ColReceivedDate, Type: ColumnDate, Writable: true},
	{Name: ColReceivedInitials, Type: ColumnText, Writable: true},
	{Name: ColExpiryDate, Type: ColumnDate, Writable: true},
	{Name: ColOpenedDate, Type: ColumnDate, Writable: true, Nullable: true},
	{Name: ColOpenedInitials, Type: ColumnText, Writable: true, Nullable: true},
	{Name: ColFinishedDate, Type: ColumnDate, Writable: true, Nullable: true},
	{Name: ColFinishedInitials, Type: ColumnText, Writable: true, Nullable: true},
	{Name: ColCreatedAt, Type: ColumnDate},
}

var eventColumns = []ColumnDef{
	{Name: ColID, Type: ColumnInteger},
	{Name: ColProductName, Type: ColumnText, Writable: true},
	{Name: ColQuantity, Type: ColumnInteger, Writable: true},
	{Name: ColDate, Type: ColumnDate, Writable: true},
	{Name: ColInitials, Type: ColumnText, Writable: true},
	{Name: ColAction, Type: ColumnText, Writable: true},
	{Name: ColCreatedAt, Type: ColumnDate},
}

var stockColumns = []ColumnDef{
	{Name: ColProductName, Type: ColumnText},
	{Name: ColKind, Type: ColumnText},
	{Name: ColUnitOfMeasure, Type: ColumnText},
	{Name: ColStation, Type: ColumnText},
	{Name: ColAlert, Type: ColumnInteger},
	{Name: ColAvailable, Type: ColumnInteger},
}

const stockOrder = "kind ASC, product_name ASC"

func stockView(name Entity) *EntityDef {
	return &EntityDef{
		Name:        name,
		Columns:     stockColumns,
		KeyColumn:   ColProductName,
		QuickSearch: ColProductName,
		OrderBy:     stockOrder,
		ReadOnly:    true,
	}
}

var entityOrder = []Entity{
	EntityProduct,
	EntityConsumableLot,
	EntityNonConsumableEvent,
	ViewStockLevels,
	ViewAvailableConsumables,
	ViewAvailableNonConsumables,
	ViewOutOfStockConsumables,
	ViewOutOfStockNonConsumables,
	ViewOutOfStock,
	ViewReorderList,
}

var schema = map[Entity]*EntityDef{
	EntityProduct: {
		Name:        EntityProduct,
		Columns:     productColumns,
		KeyColumn:   ColName,
		QuickSearch: ColName,
		OrderBy:     "name ASC",
	},
	EntityConsumableLot: {
		Name:        EntityConsumableLot,
		Columns:     lotColumns,
		KeyColumn:   ColID,
		QuickSearch: ColProductName,
		OrderBy:     "id ASC",
	},
	EntityNonConsumableEvent: {
		Name:        EntityNonConsumableEvent,
		Columns:     eventColumns,
		KeyColumn:   ColID,
		QuickSearch: ColProductName,
		OrderBy:     "id ASC",
	},
	ViewStockLevels:              stockView(ViewStockLevels),
	ViewAvailableConsumables:     stockView(ViewAvailableConsumables),
	ViewAvailableNonConsumables:  stockView(ViewAvailableNonConsumables),
	ViewOutOfStockConsumables:    stockView(ViewOutOfStockConsumables),
	ViewOutOfStockNonConsumables: stockView(ViewOutOfStockNonConsumables),
	ViewOutOfStock:               stockView(ViewOutOfStock),
	ViewReorderList:              stockView(ViewReorderList),
}

// Entities lists every entity in a stable order.
func Entities() []Entity {
	out := make([]Entity, len(entityOrder))
	copy(out, entityOrder)
	return out
}

// Lookup returns the definition for a caller-supplied entity name.
func Lookup(name string) (*EntityDef, error) {
	def, ok := schema[Entity(name)]
	if !ok {
		return nil, &ValidationError{Field: "entity", Reason: "unknown entity", Value: name}
	}
	return def, nil
}

// Def returns the definition of a known entity. It panics for values not
// declared in this file.
func (e Entity) Def() *EntityDef {
	def, ok := schema[e]
	if !ok {
		panic("inventory: undeclared entity " + string(e))
	}
	return def
}

// ListColumns returns the ordered column names of entity.
func ListColumns(entity string) ([]Column, error) {
	def, err := Lookup(entity)
	if err != nil {
		return nil, err
	}
	return def.ColumnNames(), nil
}

// ColumnTypeOf returns the semantic type of column in entity.
func ColumnTypeOf(entity string, column string) (ColumnType, error) {
	def, err := Lookup(entity)
	if err != nil {
		return 0, err
	}
	c, ok := def.Column(Column(column))
	if !ok {
		return 0, &ValidationError{Entity: def.Name, Field: column, Reason: "unknown column"}
	}
	return c.Type, nil
}
