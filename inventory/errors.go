/*
errors.go - Error taxonomy for the inventory core

PURPOSE:
  Every failure that leaves the core is one of a fixed set of kinds. Callers
  (the presentation layer) switch on Kind to pick a message; the core never
  formats user-facing text.

KINDS:
  Validation        malformed date, out-of-range value, unknown column/entity
  Referential       missing or wrong-kind product, delete with dependents
  InvalidTransition lot lifecycle skip or regression
  LedgerUnderflow   opened would exceed received
  DuplicateKey      natural-key collision
  StaleWrite        update/delete matched zero rows
  Busy              store lock contention (the only retryable kind)
  Unknown           unclassified storage failure, raw text preserved

USAGE:
  if errors.Is(err, inventory.ErrLedgerUnderflow) { ... }

  var under *inventory.UnderflowError
  if errors.As(err, &under) {
      fmt.Println(under.Received, under.Opened)
  }

  switch inventory.KindOf(err) { ... }
*/
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnknownPredicate  = errors.New("unknown predicate")
	ErrReferential       = errors.New("referential integrity violation")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrLedgerUnderflow   = errors.New("opened quantity would exceed received quantity")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrStaleWrite        = errors.New("no row matched; it was modified or deleted concurrently")
	ErrBusy              = errors.New("store is busy")
	ErrUnknown           = errors.New("storage failure")
)

// =============================================================================
// KIND - Classification used at the orchestrator boundary
// =============================================================================

type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindReferential
	KindInvalidTransition
	KindLedgerUnderflow
	KindDuplicateKey
	KindStaleWrite
	KindBusy
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	KindValidation:        "validation",
	KindReferential:       "referential",
	KindInvalidTransition: "invalid_transition",
	KindLedgerUnderflow:   "ledger_underflow",
	KindDuplicateKey:      "duplicate_key",
	KindStaleWrite:        "stale_write",
	KindBusy:              "busy",
	KindUnknown:           "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindOf classifies err. Anything that is not one of the known kinds is
// Unknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrReferential):
		return KindReferential
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrLedgerUnderflow):
		return KindLedgerUnderflow
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrStaleWrite):
		return KindStaleWrite
	case errors.Is(err, ErrBusy):
		return KindBusy
	default:
		return KindUnknown
	}
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected value. Details holds one entry per
// offending field when several were checked at once.
type ValidationError struct {
	Entity  Entity
	Field   string
	Reason  string
	Value   string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Entity != "" {
		b.WriteString(" on " + string(e.Entity))
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " (got %q)", e.Value)
	}
	if len(e.Details) > 0 {
		fields := make([]string, 0, len(e.Details))
		for f := range e.Details {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = f + ": " + e.Details[f]
		}
		b.WriteString(" [" + strings.Join(parts, "; ") + "]")
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnknownPredicateError is a validation error raised by the predicate
// compiler.
type UnknownPredicateError struct {
	Column    Column
	Type      ColumnType
	Predicate string
}

func (e *UnknownPredicateError) Error() string {
	return fmt.Sprintf("unknown predicate %q for %s column %s", e.Predicate, e.Type, e.Column)
}

func (e *UnknownPredicateError) Unwrap() []error {
	return []error{ErrUnknownPredicate, ErrValidation}
}

// ReferentialError covers missing/wrong-kind products and deletes blocked by
// dependent rows.
type ReferentialError struct {
	Entity  Entity
	Product string
	Reason  string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s: product %q: %s", e.Entity, e.Product, e.Reason)
}

func (e *ReferentialError) Unwrap() error { return ErrReferential }

// TransitionError reports a lot lifecycle skip or regression.
type TransitionError struct {
	LotID int64
	From  LotState
	To    LotState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lot %d cannot move from %s to %s", e.LotID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UnderflowError reports the ledger totals at the rejected event.
type UnderflowError struct {
	Product   string
	Received  int64
	Opened    int64
	Requested int64
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("ledger underflow for %q: received %d, opened %d, requested %d",
		e.Product, e.Received, e.Opened, e.Requested)
}

func (e *UnderflowError) Unwrap() error { return ErrLedgerUnderflow }

type DuplicateKeyError struct {
	Entity Entity
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %q already exists", e.Entity, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

type StaleWriteError struct {
	Entity Entity
	Key    Key
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("%s %s: someone else modified or deleted this row", e.Entity, e.Key)
}

func (e *StaleWriteError) Unwrap() error { return ErrStaleWrite }

// BusyError is returned once the store gave up retrying.
type BusyError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: store busy after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *BusyError) Unwrap() error { return ErrBusy }

// StoreError is an unclassified storage failure. Err keeps the raw driver
// diagnostic.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrUnknown, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the caller may retry the same call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsClientError returns true if the input was at fault rather than the store.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindReferential, KindInvalidTransition,
		KindLedgerUnderflow, KindDuplicateKey:
		return true
	}
	return false
}
