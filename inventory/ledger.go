/*
ledger.go - Non-consumable balance rules

PURPOSE:
  Non-consumables are tracked as an append-only ledger of Received and Opened
  events. The balance is never stored; it is Σreceived - Σopened over the
  product's events in insertion order.

CRITICAL INVARIANT:
  At every prefix of the ledger, Σopened <= Σreceived. Only the event that
  would break this is rejected; history is never rewritten.
*/
package inventory

import (
	"math"
	"strconv"
	"strings"
)

// Action is the signed direction of a ledger event.
type Action string

const (
	ActionReceived Action = "Received"
	ActionOpened   Action = "Opened"
)

func ParseAction(s string) (Action, error) {
	switch {
	case strings.EqualFold(s, string(ActionReceived)):
		return ActionReceived, nil
	case strings.EqualFold(s, string(ActionOpened)):
		return ActionOpened, nil
	}
	return "", &ValidationError{
		Entity: EntityNonConsumableEvent,
		Field:  string(ColAction),
		Reason: "must be one of: Received Opened",
		Value:  s,
	}
}

// Delta is the signed effect of an event on the balance.
func (e NonConsumableEvent) Delta() int64 {
	if e.Action == ActionOpened {
		return -e.Quantity
	}
	return e.Quantity
}

// Balance holds the running totals for one product.
type Balance struct {
	Product  string `db:"product_name" json:"product_name"`
	Received int64  `db:"received" json:"received"`
	Opened   int64  `db:"opened" json:"opened"`
}

func (b Balance) Available() int64 { return b.Received - b.Opened }

// CheckAppend reports whether ev may be appended to a ledger with totals b.
func (b Balance) CheckAppend(ev NonConsumableEvent) error {
	if ev.Action == ActionReceived {
		if ev.Quantity > math.MaxInt64-b.Received {
			return &ValidationError{
				Entity: EntityNonConsumableEvent,
				Field:  string(ColQuantity),
				Reason: "received total would overflow",
				Value:  strconv.FormatInt(ev.Quantity, 10),
			}
		}
		return nil
	}
	if ev.Action != ActionOpened {
		return nil
	}
	// Received >= Opened holds here, so the difference cannot overflow.
	if ev.Quantity > b.Received-b.Opened {
		return &UnderflowError{
			Product:   b.Product,
			Received:  b.Received,
			Opened:    b.Opened,
			Requested: ev.Quantity,
		}
	}
	return nil
}

// Apply returns the totals after ev.
func (b Balance) Apply(ev NonConsumableEvent) Balance {
	switch ev.Action {
	case ActionReceived:
		b.Received += ev.Quantity
	case ActionOpened:
		b.Opened += ev.Quantity
	}
	return b
}

// Replay walks events in order and fails at the first underflowing prefix.
func Replay(product string, events []NonConsumableEvent) (Balance, error) {
	b := Balance{Product: product}
	for _, ev := range events {
		if err := b.CheckAppend(ev); err != nil {
			return b, err
		}
		b = b.Apply(ev)
	}
	return b, nil
}

// CheckRemoval verifies the ledger stays valid without the event with id.
func CheckRemoval(product string, events []NonConsumableEvent, id int64) error {
	remaining := make([]NonConsumableEvent, 0, len(events))
	for _, ev := range events {
		if ev.ID != id {
			remaining = append(remaining, ev)
		}
	}
	_, err := Replay(product, remaining)
	return err
}
