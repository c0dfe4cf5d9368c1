package traffic

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/traffic-dashboard/internal/shared"
)

// Builder defaults.
const (
	HistogramBins = 20
	TablePageSize = 10
)

// SeriesPoint is one vertex of the visits time series.
type SeriesPoint struct {
	Date   string `json:"date"`
	Visits int64  `json:"visits"`
}

// BuildTimeSeries plots visits against date, one point per record in date order.
func BuildTimeSeries(records []Record) []SeriesPoint {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	points := make([]SeriesPoint, 0, len(sorted))
	for _, rec := range sorted {
		points = append(points, SeriesPoint{Date: rec.Date.Format(DateLayout), Visits: rec.Visits})
	}
	return points
}

// CategorySlice is one pie slice.
type CategorySlice struct {
	Category string  `json:"category"`
	Visits   int64   `json:"visits"`
	Share    float64 `json:"share"`
}

// BuildCategoryShare sums visits per category, ordered by category name.
func BuildCategoryShare(records []Record) []CategorySlice {
	totals := make(map[string]int64)
	var grand int64
	for _, rec := range records {
		totals[rec.Category] += rec.Visits
		grand += rec.Visits
	}
	slices := make([]CategorySlice, 0, len(totals))
	for category, visits := range totals {
		share := 0.0
		if grand > 0 {
			share = float64(visits) / float64(grand)
		}
		slices = append(slices, CategorySlice{Category: category, Visits: visits, Share: share})
	}
	sort.Slice(slices, func(i, j int) bool {
		return slices[i].Category < slices[j].Category
	})
	return slices
}

// HistogramBin counts visits values in [Lower, Upper). The last bin also
// includes its upper edge.
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// BuildHistogram distributes visits into equal-width bins spanning the
// observed range. Empty input yields no bins.
func BuildHistogram(records []Record, bins int) []HistogramBin {
	if bins <= 0 {
		bins = HistogramBins
	}
	if len(records) == 0 {
		return []HistogramBin{}
	}
	lo, hi := float64(records[0].Visits), float64(records[0].Visits)
	for _, rec := range records[1:] {
		v := float64(rec.Visits)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, rec := range records {
		idx := int((float64(rec.Visits) - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// SortDirection orders table rows.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// TableQuery selects the table page and ordering.
type TableQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Dir      SortDirection
}

// Table is one page of the record table.
type Table struct {
	Columns    []string          `json:"columns"`
	Rows       []Record          `json:"rows"`
	SortBy     string            `json:"sort_by,omitempty"`
	Dir        SortDirection     `json:"dir,omitempty"`
	Pagination shared.Pagination `json:"pagination"`
}

// BuildTable sorts records and slices out the requested page. Pages past the
// end clamp to the last page.
func BuildTable(records []Record, q TableQuery) Table {
	size := q.PageSize
	if size <= 0 {
		size = TablePageSize
	}
	p := shared.NewPagination(q.Page, size, len(records))
	if p.Page > p.TotalPages {
		p.Page = max(p.TotalPages, 1)
	}

	rows := make([]Record, len(records))
	copy(rows, records)
	if less := columnLess(q.SortBy); less != nil {
		desc := q.Dir == SortDesc
		sort.SliceStable(rows, func(i, j int) bool {
			if desc {
				return less(rows[j], rows[i])
			}
			return less(rows[i], rows[j])
		})
	}

	start := (p.Page - 1) * p.PerPage
	end := start + p.PerPage
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}

	dir := q.Dir
	if dir == "" && q.SortBy != "" {
		dir = SortAsc
	}
	return Table{
		Columns:    RequiredColumns,
		Rows:       rows[start:end],
		SortBy:     q.SortBy,
		Dir:        dir,
		Pagination: p,
	}
}

// SortableColumn reports whether the table can be ordered by name.
func SortableColumn(name string) bool {
	return columnLess(name) != nil
}

func columnLess(name string) func(a, b Record) bool {
	switch name {
	case ColumnDate:
		return func(a, b Record) bool { return a.Date.Before(b.Date) }
	case ColumnVisits:
		return func(a, b Record) bool { return a.Visits < b.Visits }
	case ColumnUniqueVisitors:
		return func(a, b Record) bool { return a.UniqueVisitors < b.UniqueVisitors }
	case ColumnPageViews:
		return func(a, b Record) bool { return a.PageViews < b.PageViews }
	case ColumnBounceRate:
		return func(a, b Record) bool { return a.BounceRate < b.BounceRate }
	case ColumnCategory:
		return func(a, b Record) bool { return a.Category < b.Category }
	default:
		return nil
	}
}

// Indicators summarises the filtered rows.
type Indicators struct {
	Rows           int     `json:"rows"`
	Visits         int64   `json:"visits"`
	UniqueVisitors int64   `json:"unique_visitors"`
	PageViews      int64   `json:"page_views"`
	MeanBounceRate float64 `json:"mean_bounce_rate"`
}

// BuildIndicators aggregates totals and the mean bounce rate. The mean of an
// empty set is zero.
func BuildIndicators(records []Record) Indicators {
	ind := Indicators{Rows: len(records)}
	var bounce float64
	for _, rec := range records {
		ind.Visits += rec.Visits
		ind.UniqueVisitors += rec.UniqueVisitors
		ind.PageViews += rec.PageViews
		bounce += rec.BounceRate
	}
	if len(records) > 0 {
		ind.MeanBounceRate = bounce / float64(len(records))
	}
	return ind
}

var indicatorPrinter = message.NewPrinter(language.English)

// Lines renders the indicator block as text.
func (i Indicators) Lines() []string {
	return []string{
		indicatorPrinter.Sprintf("Total visits: %d", i.Visits),
		indicatorPrinter.Sprintf("Unique visitors: %d", i.UniqueVisitors),
		indicatorPrinter.Sprintf("Page views: %d", i.PageViews),
		"Average bounce rate: " + FormatRate(i.MeanBounceRate) + "%",
	}
}

// FormatRate formats a percentage with two decimals.
func FormatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatCount formats an integer with thousands separators.
func FormatCount(v int64) string {
	return strings.TrimSpace(indicatorPrinter.Sprintf("%d", v))
}
