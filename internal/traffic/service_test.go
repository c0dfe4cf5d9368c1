package traffic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	data    map[string]Dataset
	saveErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Dataset)}
}

func (m *memoryStore) Save(ctx context.Context, sessionID string, ds Dataset) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[sessionID] = ds
	return nil
}

func (m *memoryStore) Load(ctx context.Context, sessionID string) (Dataset, bool, error) {
	ds, ok := m.data[sessionID]
	return ds, ok, nil
}

func (m *memoryStore) Clear(ctx context.Context, sessionID string) error {
	delete(m.data, sessionID)
	return nil
}

var fixedNow = time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)

func newTestService(initial *Dataset) (*Service, *memoryStore) {
	store := newMemoryStore()
	svc := NewService(store, initial)
	svc.WithNow(func() time.Time { return fixedNow })
	return svc, store
}

func TestServiceStartsEmpty(t *testing.T) {
	svc, _ := newTestService(nil)
	ds, state, err := svc.Dataset(context.Background(), "sess")
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, state)
	assert.True(t, ds.Empty())

	dash, err := svc.Dashboard(context.Background(), "sess", Query{})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, dash.State)
	assert.Empty(t, dash.Series)
	assert.Empty(t, dash.Categories)
	assert.Empty(t, dash.Histogram)
	assert.Empty(t, dash.Table.Rows)
	assert.Zero(t, dash.Indicators.MeanBounceRate)
	assert.Nil(t, dash.LoadedAt)
}

func TestServiceUploadLoadsSessionDataset(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	ds, err := svc.Upload(ctx, "sess", "uploads/jan.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	assert.Equal(t, "jan.csv", ds.Source)
	assert.Equal(t, fixedNow, ds.LoadedAt)
	assert.NotEmpty(t, ds.ID)

	dash, err := svc.Dashboard(ctx, "sess", Query{
		Criteria: Criteria{Range: &DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)}},
	})
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, dash.State)
	assert.Equal(t, 2, dash.TotalRows)
	assert.Equal(t, 1, dash.Indicators.Rows)
	assert.EqualValues(t, 100, dash.Indicators.Visits)
	assert.Equal(t, "2024-01-01 to 2024-01-31", dash.Window)
	assert.Equal(t, "2024-01-05", dash.MinDate)
	assert.Equal(t, "2024-02-10", dash.MaxDate)
	require.NotNil(t, dash.LoadedAt)
	assert.True(t, fixedNow.Equal(*dash.LoadedAt))

	_, state, err := svc.Dataset(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, state)
}

func TestServiceFailedUploadKeepsState(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	first, err := svc.Upload(ctx, "sess", "good.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)

	_, err = svc.Upload(ctx, "sess", "bad.csv", strings.NewReader("date,visits\n2024-01-01,1\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Equal(t, 1, store.saves)

	ds, state, err := svc.Dataset(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, first.ID, ds.ID)
}

func TestServiceUploadSurfacesStoreErrors(t *testing.T) {
	svc, store := newTestService(nil)
	store.saveErr = errors.New("redis down")
	_, err := svc.Upload(context.Background(), "sess", "good.csv", strings.NewReader(scenarioCSV))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRow)
}

func TestServiceInitialDatasetAndReset(t *testing.T) {
	initial := NewDataset("startup.csv", sampleRecords(), fixedNow)
	svc, _ := newTestService(&initial)
	ctx := context.Background()

	ds, state, err := svc.Dataset(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "startup.csv", ds.Source)

	_, err = svc.Upload(ctx, "sess", "mine.csv", strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	ds, _, err = svc.Dataset(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, "mine.csv", ds.Source)

	require.NoError(t, svc.Reset(ctx, "sess"))
	ds, state, err = svc.Dataset(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, state)
	assert.Equal(t, "startup.csv", ds.Source)
}

func TestServicePeriodWindowLabel(t *testing.T) {
	initial := NewDataset("startup.csv", sampleRecords(), fixedNow)
	dash := Build(initial, StateLoaded, Query{Criteria: Criteria{Period: PeriodQuarter, Reference: fixedNow}})
	assert.Equal(t, "2024-Q1", dash.Window)
	assert.Equal(t, 3, dash.Indicators.Rows)
	assert.Len(t, dash.Series, 3)

	open := Build(initial, StateLoaded, Query{Criteria: Criteria{Range: &DateRange{Start: day(2024, 1, 1)}}})
	assert.Equal(t, "2024-01-01 to *", open.Window)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	require.NoError(t, os.WriteFile(path, []byte(scenarioCSV), 0o600))

	ds, err := LoadFile(path, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "traffic.csv", ds.Source)
	assert.Len(t, ds.Records, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"), fixedNow)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("date\n2024-01-01\n"), 0o600))
	_, err = LoadFile(bad, fixedNow)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
