package scheduler

import (
	"time"

	"github.com/example/appointment-scheduler/internal/recurrence"
)

// Slot represents a candidate bookable interval proposed to a customer.
type Slot struct {
	Date      string    // calendar day, "2006-01-02"
	Time      string    // wall-clock start, "15:04"
	Timestamp time.Time // slot start instant
}

// Interval is a half-open [Start, End) occupied time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// DateRange is an inclusive blocked calendar-date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Input carries the pre-loaded state a resolution pass evaluates. The resolver
// itself performs no I/O; callers load rules, time off, and confirmed bookings
// for the provider and requested range up front.
type Input struct {
	Rules    []recurrence.Rule
	TimeOff  []DateRange
	Occupied []Interval
	From     time.Time
	To       time.Time
	Duration time.Duration
	// MinStart drops candidates starting before it (minimum-notice window).
	MinStart time.Time
}

// Resolve enumerates bookable slots for every calendar day in [From, To].
//
// Days fully covered by a time-off range yield nothing regardless of rules.
// Each rule matching a day generates slots independently; overlapping rules
// are not merged or deduplicated against each other, matching the observed
// behaviour of simultaneous rules. Candidates whose end would pass the rule's
// window are dropped rather than truncated.
func Resolve(input Input) []Slot {
	if input.Duration <= 0 {
		return nil
	}

	slots := make([]Slot, 0)
	loc := input.From.Location()

	for day := startOfDay(input.From); !day.After(startOfDay(input.To)); day = day.AddDate(0, 0, 1) {
		if blocked(day, input.TimeOff) {
			continue
		}

		for _, rule := range input.Rules {
			if !rule.ActiveOn(day) {
				continue
			}

			startHour, startMin, err := recurrence.ParseClock(rule.StartTime)
			if err != nil {
				continue
			}
			endHour, endMin, err := recurrence.ParseClock(rule.EndTime)
			if err != nil {
				continue
			}

			windowEnd := time.Date(day.Year(), day.Month(), day.Day(), endHour, endMin, 0, 0, loc)
			candidate := time.Date(day.Year(), day.Month(), day.Day(), startHour, startMin, 0, 0, loc)

			for candidate.Before(windowEnd) {
				candidateEnd := candidate.Add(input.Duration)
				if candidateEnd.After(windowEnd) {
					break
				}

				if !candidate.Before(input.MinStart) && !occupied(candidate, candidateEnd, input.Occupied) {
					slots = append(slots, Slot{
						Date:      day.Format("2006-01-02"),
						Time:      candidate.Format("15:04"),
						Timestamp: candidate,
					})
				}

				candidate = candidate.Add(input.Duration)
			}
		}
	}

	return slots
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func occupied(start, end time.Time, intervals []Interval) bool {
	for _, interval := range intervals {
		if Overlaps(interval.Start, interval.End, start, end) {
			return true
		}
	}
	return false
}

func blocked(day time.Time, ranges []DateRange) bool {
	for _, r := range ranges {
		if !dateBefore(day, r.Start) && !dateBefore(r.End, day) {
			return true
		}
	}
	return false
}

func dateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
