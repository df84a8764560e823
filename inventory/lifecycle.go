/*
lifecycle.go - Consumable lot state machine

PURPOSE:
  A lot moves Received -> Opened -> Finished, one step at a time. The state is
  not stored; it is derived from which (date, initials) pairs are filled in.

RULES:
  - Each (date, initials) pair is both present or both absent.
  - Non-null pairs form a prefix of [received, opened, finished].
  - A transition must target the immediate successor of the current state.
  - Generic updates may keep the state or advance it by exactly one step.
*/
package inventory

import (
	"fmt"
	"strings"
)

type LotState int

const (
	StateInvalid LotState = iota
	StateReceived
	StateOpened
	StateFinished
)

var stateNames = map[LotState]string{
	StateReceived: "Received",
	StateOpened:   "Opened",
	StateFinished: "Finished",
}

func (s LotState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LotState(%d)", int(s))
}

// ParseLotState accepts the state names case-insensitively.
func ParseLotState(s string) (LotState, error) {
	for state, name := range stateNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return state, nil
		}
	}
	return StateInvalid, &ValidationError{
		Entity: EntityConsumableLot,
		Field:  "to_state",
		Reason: "must be one of: Received Opened Finished",
		Value:  s,
	}
}

// State derives the lifecycle state. Call CheckLifecycle first; for an
// inconsistent lot the result is meaningless.
func (l *ConsumableLot) State() LotState {
	switch {
	case l.FinishedDate != nil:
		return StateFinished
	case l.OpenedDate != nil:
		return StateOpened
	default:
		return StateReceived
	}
}

// CheckLifecycle validates paired nullability and the prefix rule.
func (l *ConsumableLot) CheckLifecycle() error {
	pairs := []struct {
		field    string
		date     bool
		initials bool
	}{
		{"opened", l.OpenedDate != nil, l.OpenedInitials != nil},
		{"finished", l.FinishedDate != nil, l.FinishedInitials != nil},
	}
	details := map[string]string{}
	for _, p := range pairs {
		if p.date != p.initials {
			details[p.field+"_date"] = "date and initials must be both set or both empty"
		}
	}
	if l.ReceivedDate == "" || l.ReceivedInitials == "" {
		details["received_date"] = "received date and initials are required"
	}
	if len(details) > 0 {
		return &ValidationError{Entity: EntityConsumableLot, Details: details}
	}
	if l.FinishedDate != nil && l.OpenedDate == nil {
		return &TransitionError{LotID: l.ID, From: StateReceived, To: StateFinished}
	}
	return nil
}

// Advance moves the lot to the next state, stamping date and initials.
func (l *ConsumableLot) Advance(to LotState, date Date, initials string) error {
	from := l.State()
	if to != from+1 || to > StateFinished {
		return &TransitionError{LotID: l.ID, From: from, To: to}
	}
	if !IsValidCalendarDate(string(date)) {
		return &ValidationError{Entity: EntityConsumableLot, Field: "date", Reason: "must have the format YYYY-MM-DD and be a real date", Value: string(date)}
	}
	if n := len([]rune(initials)); n < 2 || n > 5 {
		return &ValidationError{Entity: EntityConsumableLot, Field: "initials", Reason: "must be 2 to 5 characters", Value: initials}
	}
	d, i := date, initials
	switch to {
	case StateOpened:
		l.OpenedDate, l.OpenedInitials = &d, &i
	case StateFinished:
		l.FinishedDate, l.FinishedInitials = &d, &i
	}
	return nil
}

// CheckTransition compares a lot before and after a generic update.
func CheckTransition(before, after *ConsumableLot) error {
	if err := after.CheckLifecycle(); err != nil {
		return err
	}
	from, to := before.State(), after.State()
	if to != from && to != from+1 {
		return &TransitionError{LotID: before.ID, From: from, To: to}
	}
	return nil
}
