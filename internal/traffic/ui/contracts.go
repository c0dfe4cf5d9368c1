package ui

import (
	"html/template"
	"net/url"
	"strconv"

	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/svg"
)

// DashboardFilters represents sanitized query filters used by the dashboard.
type DashboardFilters struct {
	Start  string
	End    string
	Period string
	Sort   string
	Dir    string
	Page   int
}

// Values encodes the filters back into query parameters, omitting blanks.
func (f DashboardFilters) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("start", f.Start)
	set("end", f.End)
	set("period", f.Period)
	set("sort", f.Sort)
	set("dir", f.Dir)
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	return v
}

// RangeActive reports whether an explicit date range overrides the period.
func (f DashboardFilters) RangeActive() bool {
	return f.Start != "" || f.End != ""
}

// PeriodOptions lists the selector entries for f. No entry is marked while a
// date range applies.
func (f DashboardFilters) PeriodOptions() []PeriodOption {
	opts := PeriodOptions(f.Period)
	if f.RangeActive() {
		for i := range opts {
			opts[i].Selected = false
		}
	}
	return opts
}

// Encode returns the query string for the filters.
func (f DashboardFilters) Encode() string {
	return f.Values().Encode()
}

// Query returns the encoded filters for use inside href attributes.
func (f DashboardFilters) Query() template.URL {
	return template.URL(f.Encode())
}

// PageQuery returns the query string selecting page p.
func (f DashboardFilters) PageQuery(p int) template.URL {
	f.Page = p
	return f.Query()
}

// SortQuery returns the query string toggling the sort on column.
func (f DashboardFilters) SortQuery(column string) template.URL {
	dir := "asc"
	if f.Sort == column && f.Dir != "desc" {
		dir = "desc"
	}
	f.Sort = column
	f.Dir = dir
	f.Page = 0
	return f.Query()
}

// PeriodOption is one entry of the period selector.
type PeriodOption struct {
	Value    string
	Label    string
	Selected bool
}

// PeriodOptions lists the selector entries with the active one marked.
func PeriodOptions(selected string) []PeriodOption {
	opts := []PeriodOption{{Value: "", Label: "All dates", Selected: selected == ""}}
	labels := map[traffic.Period]string{
		traffic.PeriodMonth:   "Current month",
		traffic.PeriodQuarter: "Current quarter",
		traffic.PeriodYear:    "Current year",
	}
	for _, p := range traffic.Periods {
		opts = append(opts, PeriodOption{Value: string(p), Label: labels[p], Selected: string(p) == selected})
	}
	return opts
}

// TableRow is a display-ready record.
type TableRow struct {
	Date           string
	Visits         string
	UniqueVisitors string
	PageViews      string
	BounceRate     string
	Category       string
}

// ToTableRows formats records for the table partial.
func ToTableRows(records []traffic.Record) []TableRow {
	rows := make([]TableRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, TableRow{
			Date:           rec.Date.Format(traffic.DateLayout),
			Visits:         traffic.FormatCount(rec.Visits),
			UniqueVisitors: traffic.FormatCount(rec.UniqueVisitors),
			PageViews:      traffic.FormatCount(rec.PageViews),
			BounceRate:     traffic.FormatRate(rec.BounceRate),
			Category:       rec.Category,
		})
	}
	return rows
}

// DashboardViewModel combines all dashboard data for rendering.
type DashboardViewModel struct {
	Filters        DashboardFilters
	Periods        []PeriodOption
	Dashboard      traffic.Dashboard
	Loaded         bool
	IndicatorLines []string
	Rows           []TableRow
	SeriesSVG      template.HTML
	PieSVG         template.HTML
	HistogramSVG   template.HTML
	MaxUploadMB    int64
}

// LineRenderer abstracts SVG line chart rendering for the dashboard.
type LineRenderer interface {
	Line(width, height int, series []float64, labels []string, opts svg.LineOpts) (template.HTML, error)
}

// PieRenderer abstracts SVG pie chart rendering for the dashboard.
type PieRenderer interface {
	Pie(width, height int, values []float64, labels []string, opts svg.PieOpts) (template.HTML, error)
}

// HistogramRenderer abstracts SVG histogram rendering for the dashboard.
type HistogramRenderer interface {
	Histogram(width, height int, counts []float64, labels []string, opts svg.HistogramOpts) (template.HTML, error)
}
