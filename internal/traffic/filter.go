package traffic

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Period selects the calendar window that contains the reference time.
type Period string

// Supported periods.
const (
	PeriodNone    Period = ""
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// Periods lists the selectable periods in display order.
var Periods = []Period{PeriodMonth, PeriodQuarter, PeriodYear}

// ParsePeriod converts a selector value into a Period.
func ParsePeriod(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodNone, PeriodMonth, PeriodQuarter, PeriodYear:
		return p, nil
	default:
		return PeriodNone, fmt.Errorf("traffic: unknown period %q", raw)
	}
}

// Window returns the inclusive calendar-day range the period covers around ref.
func (p Period) Window(ref time.Time) (DateRange, bool) {
	ref = Day(ref)
	y, m := ref.Year(), ref.Month()
	var start, end time.Time
	switch p {
	case PeriodMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	case PeriodQuarter:
		first := time.Month((quarterOf(ref)-1)*3 + 1)
		start = time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, -1)
	case PeriodYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Label renders the period window as shown in the dashboard heading.
func (p Period) Label(ref time.Time) string {
	switch p {
	case PeriodMonth:
		return ref.Format("2006-01")
	case PeriodQuarter:
		return fmt.Sprintf("%d-Q%d", ref.Year(), quarterOf(ref))
	case PeriodYear:
		return ref.Format("2006")
	default:
		return ""
	}
}

// Matches reports whether rec falls in the same period as ref.
func (p Period) Matches(rec Record, ref time.Time) bool {
	switch p {
	case PeriodMonth:
		return rec.Year() == ref.Year() && rec.Month() == int(ref.Month())
	case PeriodQuarter:
		return rec.Year() == ref.Year() && rec.Quarter() == quarterOf(ref)
	case PeriodYear:
		return rec.Year() == ref.Year()
	default:
		return true
	}
}

// DateRange is an inclusive calendar-day interval. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, both ends inclusive.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	if !r.Start.IsZero() && d.Before(Day(r.Start)) {
		return false
	}
	if !r.End.IsZero() && d.After(Day(r.End)) {
		return false
	}
	return true
}

// Criteria selects records. Range takes precedence over Period when both are
// set. Reference anchors Period and must be supplied by the caller.
type Criteria struct {
	Range     *DateRange
	Period    Period
	Reference time.Time
}

// Active reports whether the criteria narrow the dataset at all.
func (c Criteria) Active() bool {
	return c.Range != nil || c.Period != PeriodNone
}

// Filter returns the records matching criteria, preserving input order.
func Filter(records []Record, c Criteria) []Record {
	if !c.Active() {
		return slices.Clone(records)
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		switch {
		case c.Range != nil:
			if !c.Range.Contains(rec.Date) {
				continue
			}
		case c.Period != PeriodNone:
			if !c.Period.Matches(rec, c.Reference) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}
