package traffic

import (
	"time"

	"github.com/google/uuid"
)

// Column names expected in the CSV header.
const (
	ColumnDate           = "date"
	ColumnVisits         = "visits"
	ColumnUniqueVisitors = "unique_visitors"
	ColumnPageViews      = "page_views"
	ColumnBounceRate     = "bounce_rate"
	ColumnCategory       = "category"
)

// RequiredColumns lists the header fields every dataset must carry.
var RequiredColumns = []string{
	ColumnDate,
	ColumnVisits,
	ColumnUniqueVisitors,
	ColumnPageViews,
	ColumnBounceRate,
	ColumnCategory,
}

// DateLayout is the canonical calendar date format used across the dashboard.
const DateLayout = "2006-01-02"

// Record is one row of traffic metrics for a date and category.
type Record struct {
	Date           time.Time `json:"date"`
	Visits         int64     `json:"visits"`
	UniqueVisitors int64     `json:"unique_visitors"`
	PageViews      int64     `json:"page_views"`
	BounceRate     float64   `json:"bounce_rate"`
	Category       string    `json:"category"`
}

// Year returns the calendar year derived from the record date.
func (r Record) Year() int {
	return r.Date.Year()
}

// Month returns the month number (1-12) derived from the record date.
func (r Record) Month() int {
	return int(r.Date.Month())
}

// Quarter returns the quarter number (1-4) derived from the record date.
func (r Record) Quarter() int {
	return quarterOf(r.Date)
}

func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dataset is the in-memory table a session works on. It is replaced wholesale.
type Dataset struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Records  []Record  `json:"records"`
}

// NewDataset stamps records with a fresh identifier and load time.
func NewDataset(source string, records []Record, loadedAt time.Time) Dataset {
	return Dataset{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: loadedAt.UTC(),
		Records:  records,
	}
}

// Empty reports whether the dataset carries no rows.
func (d Dataset) Empty() bool {
	return len(d.Records) == 0
}

// DateBounds returns the earliest and latest record dates. ok is false for an
// empty slice.
func DateBounds(records []Record) (minDate, maxDate time.Time, ok bool) {
	if len(records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	minDate = Day(records[0].Date)
	maxDate = minDate
	for _, rec := range records[1:] {
		d := Day(rec.Date)
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}
	return minDate, maxDate, true
}
