package traffic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DatasetStore persists per-session datasets.
type DatasetStore interface {
	Save(ctx context.Context, sessionID string, ds Dataset) error
	Load(ctx context.Context, sessionID string) (Dataset, bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// State describes whether a session has data to show.
type State string

// Dashboard states.
const (
	StateEmpty  State = "no data loaded"
	StateLoaded State = "data loaded"
)

// Service resolves the dataset of a session and recomputes dashboards.
type Service struct {
	store   DatasetStore
	initial *Dataset
	now     func() time.Time
}

// NewService wires a DatasetStore with an optional process-start dataset.
// The initial dataset is shared read-only by every session without an upload.
func NewService(store DatasetStore, initial *Dataset) *Service {
	return &Service{store: store, initial: initial, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// LoadFile reads the process-start CSV.
func LoadFile(path string, loadedAt time.Time) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()
	records, err := ParseCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("load %s: %w", path, err)
	}
	return NewDataset(filepath.Base(path), records, loadedAt), nil
}

// Upload parses r and, when valid, replaces the session dataset. A parse
// failure leaves the stored dataset untouched.
func (s *Service) Upload(ctx context.Context, sessionID, name string, r io.Reader) (Dataset, error) {
	records, err := ParseCSV(r)
	if err != nil {
		return Dataset{}, err
	}
	ds := NewDataset(filepath.Base(name), records, s.now())
	if err := s.store.Save(ctx, sessionID, ds); err != nil {
		return Dataset{}, fmt.Errorf("save dataset: %w", err)
	}
	return ds, nil
}

// Reset drops the uploaded dataset so the session falls back to the initial one.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

// Dataset returns the dataset visible to the session.
func (s *Service) Dataset(ctx context.Context, sessionID string) (Dataset, State, error) {
	ds, ok, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Dataset{}, StateEmpty, err
	}
	if ok {
		return ds, StateLoaded, nil
	}
	if s.initial != nil {
		return *s.initial, StateLoaded, nil
	}
	return Dataset{}, StateEmpty, nil
}

// Query bundles every input control of one dashboard event.
type Query struct {
	Criteria Criteria
	Table    TableQuery
}

// Dashboard is the full output of one recompute cycle.
type Dashboard struct {
	State      State           `json:"state"`
	DatasetID  string          `json:"dataset_id,omitempty"`
	Source     string          `json:"source,omitempty"`
	LoadedAt   *time.Time      `json:"loaded_at,omitempty"`
	TotalRows  int             `json:"total_rows"`
	MinDate    string          `json:"min_date,omitempty"`
	MaxDate    string          `json:"max_date,omitempty"`
	Window     string          `json:"window,omitempty"`
	Indicators Indicators      `json:"indicators"`
	Series     []SeriesPoint   `json:"series"`
	Categories []CategorySlice `json:"categories"`
	Histogram  []HistogramBin  `json:"histogram"`
	Table      Table           `json:"table"`
}

// Dashboard resolves the session dataset and rebuilds every view.
func (s *Service) Dashboard(ctx context.Context, sessionID string, q Query) (Dashboard, error) {
	ds, state, err := s.Dataset(ctx, sessionID)
	if err != nil {
		return Dashboard{}, err
	}
	return Build(ds, state, q), nil
}

// Build runs the filter stage and all builders over ds.
func Build(ds Dataset, state State, q Query) Dashboard {
	filtered := Filter(ds.Records, q.Criteria)
	out := Dashboard{
		State:      state,
		DatasetID:  ds.ID,
		Source:     ds.Source,
		TotalRows:  len(ds.Records),
		Indicators: BuildIndicators(filtered),
		Series:     BuildTimeSeries(filtered),
		Categories: BuildCategoryShare(filtered),
		Histogram:  BuildHistogram(filtered, HistogramBins),
		Table:      BuildTable(filtered, q.Table),
	}
	if !ds.LoadedAt.IsZero() {
		loadedAt := ds.LoadedAt
		out.LoadedAt = &loadedAt
	}
	if minDate, maxDate, ok := DateBounds(ds.Records); ok {
		out.MinDate = minDate.Format(DateLayout)
		out.MaxDate = maxDate.Format(DateLayout)
	}
	switch {
	case q.Criteria.Range != nil:
		out.Window = rangeLabel(*q.Criteria.Range)
	case q.Criteria.Period != PeriodNone:
		out.Window = q.Criteria.Period.Label(q.Criteria.Reference)
	}
	return out
}

func rangeLabel(r DateRange) string {
	start, end := "*", "*"
	if !r.Start.IsZero() {
		start = r.Start.Format(DateLayout)
	}
	if !r.End.IsZero() {
		end = r.End.Format(DateLayout)
	}
	return start + " to " + end
}
