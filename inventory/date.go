package inventory

import (
	"time"
)

const (
	// DateLayout is the only accepted shape for date columns.
	DateLayout = "2006-01-02"

	// TimestampLayout is used for created_at columns.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Date is a calendar date in YYYY-MM-DD form. Values built with ParseDate
// or DateOf are always real calendar dates.
type Date string

// ParseDate accepts exactly YYYY-MM-DD and rejects impossible dates such as
// 2024-02-30.
func ParseDate(s string) (Date, error) {
	if !IsValidCalendarDate(s) {
		return "", &ValidationError{
			Reason: "must have the format YYYY-MM-DD and be a real date",
			Value:  s,
		}
	}
	return Date(s), nil
}

// IsValidCalendarDate reports whether s is a well-formed, existing date.
func IsValidCalendarDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func (d Date) String() string { return string(d) }

// Ptr is a convenience for optional date fields.
func (d Date) Ptr() *Date { return &d }

// Timestamp formats t for created_at columns.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
