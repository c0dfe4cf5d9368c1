package traffic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"02.01.2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseCSV reads a traffic dataset. Columns are matched by header name,
// ignoring case and surrounding spaces; unknown columns are skipped.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyUpload
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, 64)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
		}
		line, _ := reader.FieldPos(0)
		if blankRow(row) {
			continue
		}
		rec, err := parseRow(row, index, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return index, nil
}

func parseRow(row []string, index map[string]int, line int) (Record, error) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec Record
	var err error

	raw := cell(ColumnDate)
	if rec.Date, err = parseDate(raw); err != nil {
		return Record{}, &ParseError{Line: line, Column: ColumnDate, Value: raw, Err: err}
	}

	counts := []struct {
		col  string
		dest *int64
	}{
		{ColumnVisits, &rec.Visits},
		{ColumnUniqueVisitors, &rec.UniqueVisitors},
		{ColumnPageViews, &rec.PageViews},
	}
	for _, c := range counts {
		raw := cell(c.col)
		v, err := parseCount(raw)
		if err != nil {
			return Record{}, &ParseError{Line: line, Column: c.col, Value: raw, Err: err}
		}
		*c.dest = v
	}

	raw = cell(ColumnBounceRate)
	if rec.BounceRate, err = parseRate(raw); err != nil {
		return Record{}, &ParseError{Line: line, Column: ColumnBounceRate, Value: raw, Err: err}
	}

	rec.Category = cell(ColumnCategory)
	return rec, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("date required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, errors.New("unrecognised date format")
}

func parseCount(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("value required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, errors.New("integer expected")
		}
		v = int64(f)
	}
	if v < 0 {
		return 0, errors.New("must not be negative")
	}
	return v, nil
}

func parseRate(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	if raw == "" {
		return 0, errors.New("value required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, errors.New("number expected")
	}
	if v < 0 || v > 100 {
		return 0, errors.New("must be between 0 and 100")
	}
	return v, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
