package traffic

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() []Record {
	return []Record{
		{Date: day(2024, 3, 15), Visits: 50, UniqueVisitors: 40, PageViews: 90, BounceRate: 20, Category: "social"},
		{Date: day(2024, 1, 5), Visits: 100, UniqueVisitors: 80, PageViews: 150, BounceRate: 30, Category: "ads"},
		{Date: day(2023, 1, 20), Visits: 70, UniqueVisitors: 60, PageViews: 120, BounceRate: 45, Category: "ads"},
		{Date: day(2024, 2, 10), Visits: 200, UniqueVisitors: 150, PageViews: 300, BounceRate: 40, Category: "organic"},
		{Date: day(2024, 7, 1), Visits: 10, UniqueVisitors: 9, PageViews: 12, BounceRate: 60, Category: "organic"},
	}
}

func TestFilterRangeScenario(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(scenarioCSV))
	require.NoError(t, err)

	got := Filter(records, Criteria{Range: &DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)}})
	require.Len(t, got, 1)
	assert.Equal(t, records[0], got[0])
	assert.EqualValues(t, 100, BuildIndicators(got).Visits)
}

func TestFilterFullRangeKeepsEveryRow(t *testing.T) {
	records := sampleRecords()
	minDate, maxDate, ok := DateBounds(records)
	require.True(t, ok)
	assert.Equal(t, day(2023, 1, 20), minDate)
	assert.Equal(t, day(2024, 7, 1), maxDate)

	got := Filter(records, Criteria{Range: &DateRange{Start: minDate, End: maxDate}})
	assert.Equal(t, records, got)
}

func TestFilterRangeBounds(t *testing.T) {
	records := sampleRecords()

	inclusive := Filter(records, Criteria{Range: &DateRange{Start: day(2024, 2, 10), End: day(2024, 3, 15)}})
	require.Len(t, inclusive, 2)
	assert.Equal(t, "social", inclusive[0].Category)
	assert.Equal(t, "organic", inclusive[1].Category)

	openStart := Filter(records, Criteria{Range: &DateRange{End: day(2023, 12, 31)}})
	require.Len(t, openStart, 1)
	assert.Equal(t, day(2023, 1, 20), openStart[0].Date)

	inverted := Filter(records, Criteria{Range: &DateRange{Start: day(2024, 5, 1), End: day(2024, 1, 1)}})
	assert.Empty(t, inverted)
}

func TestFilterPeriodUsesReference(t *testing.T) {
	records := sampleRecords()
	ref := time.Date(2024, 2, 20, 15, 30, 0, 0, time.UTC)

	month := Filter(records, Criteria{Period: PeriodMonth, Reference: ref})
	require.Len(t, month, 1)
	assert.EqualValues(t, 200, month[0].Visits)

	quarter := Filter(records, Criteria{Period: PeriodQuarter, Reference: ref})
	assert.Len(t, quarter, 3)

	year := Filter(records, Criteria{Period: PeriodYear, Reference: ref})
	assert.Len(t, year, 4)

	// January 2023 shares month and quarter numbers with 2024 but not the year.
	for _, rec := range quarter {
		assert.Equal(t, 2024, rec.Year())
	}
}

func TestFilterRangeWinsOverPeriod(t *testing.T) {
	records := sampleRecords()
	got := Filter(records, Criteria{
		Range:     &DateRange{Start: day(2023, 1, 1), End: day(2023, 12, 31)},
		Period:    PeriodMonth,
		Reference: day(2024, 2, 1),
	})
	require.Len(t, got, 1)
	assert.Equal(t, 2023, got[0].Year())
}

func TestFilterNoCriteria(t *testing.T) {
	records := sampleRecords()
	c := Criteria{}
	assert.False(t, c.Active())
	got := Filter(records, c)
	assert.Equal(t, records, got)
	got[0].Visits = -1
	assert.Equal(t, int64(50), records[0].Visits, "unfiltered result must not alias the input")
	assert.Empty(t, Filter(nil, Criteria{Period: PeriodYear, Reference: day(2024, 1, 1)}))
}

func TestPeriodWindowAndLabel(t *testing.T) {
	ref := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)

	w, ok := PeriodMonth.Window(ref)
	require.True(t, ok)
	assert.Equal(t, DateRange{Start: day(2024, 5, 1), End: day(2024, 5, 31)}, w)
	assert.Equal(t, "2024-05", PeriodMonth.Label(ref))

	w, ok = PeriodQuarter.Window(ref)
	require.True(t, ok)
	assert.Equal(t, DateRange{Start: day(2024, 4, 1), End: day(2024, 6, 30)}, w)
	assert.Equal(t, "2024-Q2", PeriodQuarter.Label(ref))

	w, ok = PeriodYear.Window(ref)
	require.True(t, ok)
	assert.Equal(t, DateRange{Start: day(2024, 1, 1), End: day(2024, 12, 31)}, w)
	assert.Equal(t, "2024", PeriodYear.Label(ref))

	_, ok = PeriodNone.Window(ref)
	assert.False(t, ok)
	assert.Empty(t, PeriodNone.Label(ref))
}

func TestPeriodWindowAgreesWithMatches(t *testing.T) {
	ref := day(2024, 8, 3)
	for _, p := range Periods {
		w, ok := p.Window(ref)
		require.True(t, ok)
		for d := day(2023, 12, 1); d.Before(day(2025, 2, 1)); d = d.AddDate(0, 0, 1) {
			rec := Record{Date: d}
			assert.Equal(t, w.Contains(d), p.Matches(rec, ref), "period %s day %s", p, d.Format(DateLayout))
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod(" Quarter ")
	require.NoError(t, err)
	assert.Equal(t, PeriodQuarter, p)

	p, err = ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodNone, p)

	_, err = ParsePeriod("week")
	assert.Error(t, err)
}
