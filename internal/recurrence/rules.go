package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies how an availability rule repeats.
type Kind string

const (
	// KindWeekly matches every week on the rule's weekday.
	KindWeekly Kind = "weekly"
	// KindOddWeek matches the rule's weekday only in odd ISO-8601 weeks.
	KindOddWeek Kind = "odd_week"
	// KindEvenWeek matches the rule's weekday only in even ISO-8601 weeks.
	KindEvenWeek Kind = "even_week"
	// KindSpecificDate matches a single calendar date.
	KindSpecificDate Kind = "specific_date"
	// KindDaily is accepted for legacy rows but never matched by the resolver.
	KindDaily Kind = "daily"
)

// Valid reports whether k is a known rule kind.
func (k Kind) Valid() bool {
	switch k {
	case KindWeekly, KindOddWeek, KindEvenWeek, KindSpecificDate, KindDaily:
		return true
	}
	return false
}

// Rule describes a recurrence configuration evaluated against calendar days.
// StartTime and EndTime are wall-clock values in "15:04" form.
type Rule struct {
	ID           string
	Kind         Kind
	Weekday      time.Weekday
	SpecificDate *time.Time
	StartTime    string
	EndTime      string
	ValidUntil   *time.Time
}

// ErrInvalidClock indicates a time-of-day string is not in "HH:MM" form.
var ErrInvalidClock = errors.New("recurrence: invalid wall-clock time")

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(value string) (hour, minute int, err error) {
	parsed, perr := time.Parse("15:04", value)
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// IsOddISOWeek reports whether the ISO-8601 week number containing day is odd.
// ISO weeks start on Monday; week 1 is the week containing the year's first
// Thursday.
func IsOddISOWeek(day time.Time) bool {
	_, week := day.ISOWeek()
	return week%2 != 0
}

// ActiveOn reports whether the rule produces a window on the given calendar
// day. Only the date portion of day is considered.
func (r Rule) ActiveOn(day time.Time) bool {
	if r.ValidUntil != nil && afterDate(day, *r.ValidUntil) {
		return false
	}

	if r.Kind == KindSpecificDate {
		return r.SpecificDate != nil && sameDate(day, *r.SpecificDate)
	}

	if r.Weekday != day.Weekday() {
		return false
	}

	switch r.Kind {
	case KindWeekly:
		return true
	case KindOddWeek:
		return IsOddISOWeek(day)
	case KindEvenWeek:
		return !IsOddISOWeek(day)
	default:
		return false
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func afterDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
