package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
)

// WriteRecordsCSV serialises records using the upload column layout, so an
// export can be uploaded again unchanged.
func WriteRecordsCSV(w io.Writer, records []traffic.Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(traffic.RequiredColumns); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write([]string{
			rec.Date.Format(traffic.DateLayout),
			strconv.FormatInt(rec.Visits, 10),
			strconv.FormatInt(rec.UniqueVisitors, 10),
			strconv.FormatInt(rec.PageViews, 10),
			strconv.FormatFloat(rec.BounceRate, 'f', -1, 64),
			rec.Category,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteIndicatorsCSV emits the indicator block as metric/value pairs.
func WriteIndicatorsCSV(w io.Writer, ind traffic.Indicators, window string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	records := [][]string{
		{"Metric", "Value"},
		{"Window", window},
		{"Rows", strconv.Itoa(ind.Rows)},
		{"Visits", strconv.FormatInt(ind.Visits, 10)},
		{"Unique Visitors", strconv.FormatInt(ind.UniqueVisitors, 10)},
		{"Page Views", strconv.FormatInt(ind.PageViews, 10)},
		{"Mean Bounce Rate", traffic.FormatRate(ind.MeanBounceRate)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
