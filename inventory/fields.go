package inventory

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Fields is the raw, column-keyed input of a create or update. Values are
// the text a caller typed; an empty string clears an optional column.
type Fields map[Column]string

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Columns returns the keys in sorted order.
func (f Fields) Columns() []Column {
	cols := make([]Column, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	return cols
}

// CheckWritable rejects columns the entity does not have or does not let
// callers write.
func CheckWritable(def *EntityDef, f Fields) error {
	if def.ReadOnly {
		return &ValidationError{Entity: def.Name, Reason: "entity is read-only"}
	}
	details := map[string]string{}
	for _, c := range f.Columns() {
		cd, ok := def.Column(c)
		switch {
		case !ok:
			details[string(c)] = "unknown column"
		case !cd.Writable:
			details[string(c)] = "column is not writable"
		}
	}
	if len(details) > 0 {
		return &ValidationError{Entity: def.Name, Details: details}
	}
	return nil
}

// ValidateDates checks every non-blank date column before anything else
// happens to the input.
func ValidateDates(def *EntityDef, f Fields) error {
	details := map[string]string{}
	for _, c := range f.Columns() {
		cd, ok := def.Column(c)
		if !ok || cd.Type != ColumnDate {
			continue
		}
		v := strings.TrimSpace(f[c])
		if v == "" {
			continue
		}
		if !IsValidCalendarDate(v) {
			details[string(c)] = "must have the format YYYY-MM-DD and be a real date"
		}
	}
	if len(details) > 0 {
		return &ValidationError{Entity: def.Name, Details: details}
	}
	return nil
}

// =============================================================================
// PRODUCT
// =============================================================================

// DecodeProduct builds a new product from f.
func DecodeProduct(f Fields) (Product, error) {
	var p Product
	if err := ApplyProduct(&p, f); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ApplyProduct overwrites the columns present in f and validates the result.
func ApplyProduct(p *Product, f Fields) error {
	def := EntityProduct.Def()
	if err := CheckWritable(def, f); err != nil {
		return err
	}
	details := map[string]string{}
	for _, c := range f.Columns() {
		v := strings.TrimSpace(f[c])
		switch c {
		case ColName:
			p.Name = v
		case ColAlsItem:
			p.AlsItem = optional(v)
		case ColUnitPrice:
			if v == "" {
				p.UnitPrice = decimal.Zero
				continue
			}
			d, err := decimal.NewFromString(v)
			if err != nil {
				details[string(c)] = "must be a number"
				continue
			}
			p.UnitPrice = d
		case ColUnitOfMeasure:
			p.UnitOfMeasure = v
		case ColDescription:
			p.Description = v
		case ColStation:
			p.Station = v
		case ColIsConsumable:
			b, err := ParseFlag(v)
			if err != nil {
				details[string(c)] = "must be a yes/no value"
				continue
			}
			p.IsConsumable = b
		case ColAlert:
			n, err := parseInt(v)
			if err != nil {
				details[string(c)] = "must be an integer"
				continue
			}
			p.Alert = n
		case ColVendorItem:
			p.VendorItem = optional(v)
		case ColVendor:
			p.Vendor = optional(v)
		case ColPO:
			p.PO = optional(v)
		}
	}
	if len(details) > 0 {
		return &ValidationError{Entity: EntityProduct, Details: details}
	}
	return Validate(EntityProduct, p)
}

// =============================================================================
// CONSUMABLE LOT
// =============================================================================

func DecodeLot(f Fields) (ConsumableLot, error) {
	var l ConsumableLot
	if err := ApplyLot(&l, f); err != nil {
		return ConsumableLot{}, err
	}
	return l, nil
}

// ApplyLot overwrites the columns present in f and validates the result,
// including the lifecycle shape. It does not judge the transition; use
// CheckTransition for that.
func ApplyLot(l *ConsumableLot, f Fields) error {
	def := EntityConsumableLot.Def()
	if err := CheckWritable(def, f); err != nil {
		return err
	}
	if err := ValidateDates(def, f); err != nil {
		return err
	}
	for _, c := range f.Columns() {
		v := strings.TrimSpace(f[c])
		switch c {
		case ColProductName:
			l.ProductName = v
		case ColLot:
			l.Lot = v
		case ColReceivedDate:
			l.ReceivedDate = Date(v)
		case ColReceivedInitials:
			l.ReceivedInitials = v
		case ColExpiryDate:
			l.ExpiryDate = Date(v)
		case ColOpenedDate:
			l.OpenedDate = optionalDate(v)
		case ColOpenedInitials:
			l.OpenedInitials = optional(v)
		case ColFinishedDate:
			l.FinishedDate = optionalDate(v)
		case ColFinishedInitials:
			l.FinishedInitials = optional(v)
		}
	}
	if err := Validate(EntityConsumableLot, l); err != nil {
		return err
	}
	return l.CheckLifecycle()
}

// =============================================================================
// NON-CONSUMABLE EVENT
// =============================================================================

// DecodeEvent builds a new ledger event. Events are never updated.
func DecodeEvent(f Fields) (NonConsumableEvent, error) {
	def := EntityNonConsumableEvent.Def()
	if err := CheckWritable(def, f); err != nil {
		return NonConsumableEvent{}, err
	}
	if err := ValidateDates(def, f); err != nil {
		return NonConsumableEvent{}, err
	}
	var ev NonConsumableEvent
	details := map[string]string{}
	for _, c := range f.Columns() {
		v := strings.TrimSpace(f[c])
		switch c {
		case ColProductName:
			ev.ProductName = v
		case ColQuantity:
			n, err := parseInt(v)
			if err != nil {
				details[string(c)] = "must be an integer"
				continue
			}
			ev.Quantity = n
		case ColDate:
			ev.Date = Date(v)
		case ColInitials:
			ev.Initials = v
		case ColAction:
			a, err := ParseAction(v)
			if err != nil {
				details[string(c)] = "must be one of: Received Opened"
				continue
			}
			ev.Action = a
		}
	}
	if len(details) > 0 {
		return NonConsumableEvent{}, &ValidationError{Entity: EntityNonConsumableEvent, Details: details}
	}
	if err := Validate(EntityNonConsumableEvent, ev); err != nil {
		return NonConsumableEvent{}, err
	}
	return ev, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseFlag reads the yes/no spellings accepted for is_consumable.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "y", "yes":
		return true, nil
	case "0", "false", "n", "no", "":
		return false, nil
	}
	return false, &ValidationError{Field: string(ColIsConsumable), Reason: "must be a yes/no value", Value: s}
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(s string) *Date {
	if s == "" {
		return nil
	}
	d := Date(s)
	return &d
}
