package detection

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/osm"
	"knockwise/internal/service/enrichment"
	"knockwise/internal/service/simulation"
)

var square = []model.LatLng{
	{Lat: 43.6450, Lng: -79.3850},
	{Lat: 43.6450, Lng: -79.3849},
	{Lat: 43.6449, Lng: -79.3849},
	{Lat: 43.6449, Lng: -79.3850},
}

type fakeSource struct {
	result *osm.QueryResult
	err    error
}

func (f *fakeSource) FetchBuildings(ctx context.Context, q osm.BuildingQuery) (*osm.QueryResult, error) {
	return f.result, f.err
}

type staticGeocoder struct{}

func (staticGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return "5 Test Ave, Toronto", nil
}

type memoryRunStore struct {
	runs []*model.DetectionRunPG
}

func (m *memoryRunStore) SaveDetectionRun(ctx context.Context, run *model.DetectionRunPG) error {
	m.runs = append(m.runs, run)
	return nil
}

func newDetector(src *fakeSource, store RunStore, degrade bool) *Detector {
	// five expected buildings for the test square
	per := geometry.PolygonArea(square) / 5.5
	sim := simulation.NewSimulatorWith(simulation.DefaultMaxAttempts, rand.New(rand.NewSource(1)), time.Now)
	enr := enrichment.NewEnricher(src, nil, staticGeocoder{}, enrichment.Options{})
	return NewDetector(enr, sim, store, Config{AreaPerBuilding: per, DegradeOnQueryFailure: degrade})
}

func located(id int64, lat, lng float64) osm.Element {
	return osm.Element{ID: id, Type: "way", Center: model.LatLng{Lat: lat, Lng: lng}, Location: osm.WithCenter}
}

func TestDetectTopsUpRealBuildings(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{Elements: []osm.Element{
		located(11, 43.64495, -79.38495),
		located(12, 43.64496, -79.38496),
		located(13, 43.70000, -79.38495), // outside
	}}}
	store := &memoryRunStore{}

	res, err := newDetector(src, store, false).Detect(context.Background(), "Test", square)
	require.NoError(t, err)

	assert.Equal(t, 5, res.TargetCount)
	require.Len(t, res.Buildings, 5)
	assert.Equal(t, 2, res.RealCount)
	assert.Equal(t, 3, res.SimulatedCount)

	real, simulated := 0, 0
	for _, b := range res.Buildings {
		switch b.Type {
		case model.BuildingTypeReal:
			real++
		case model.BuildingTypeSimulated:
			simulated++
		}
	}
	assert.Equal(t, 2, real)
	assert.Equal(t, 3, simulated)
	assert.Equal(t, "real-11", res.Buildings[0].ID)
	assert.Equal(t, "real-12", res.Buildings[1].ID)

	require.Len(t, store.runs, 1)
	assert.Equal(t, res.RunID, store.runs[0].ID)
	assert.Equal(t, 3, store.runs[0].SimulatedCount)
}

func TestDetectExcludesInvalidBeforeCounting(t *testing.T) {
	// the invalid element never reaches the detector; osm drops it and reports it
	src := &fakeSource{result: &osm.QueryResult{
		Elements: []osm.Element{
			located(1, 43.64495, -79.38495),
			located(2, 43.64496, -79.38496),
		},
		Dropped: 1,
	}}

	res, err := newDetector(src, nil, false).Detect(context.Background(), "", square)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RealCount)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, res.TargetCount-2, res.SimulatedCount)
}

func TestDetectQueryFailure(t *testing.T) {
	qerr := &osm.QueryFailedError{Attempts: 3, Err: errors.New("503")}

	_, err := newDetector(&fakeSource{err: qerr}, nil, false).Detect(context.Background(), "", square)
	assert.ErrorIs(t, err, osm.ErrQueryFailed)

	res, err := newDetector(&fakeSource{err: qerr}, nil, true).Detect(context.Background(), "", square)
	require.NoError(t, err)
	assert.True(t, res.QueryFailed)
	assert.Zero(t, res.RealCount)
	assert.Equal(t, res.TargetCount, res.SimulatedCount)
}

func TestDetectFreshRunEachTime(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{}}
	d := newDetector(src, nil, false)

	a, err := d.Detect(context.Background(), "", square)
	require.NoError(t, err)
	b, err := d.Detect(context.Background(), "", square)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Len(t, b.Buildings, b.TargetCount)
}

func TestDetectInvalidPolygon(t *testing.T) {
	_, err := newDetector(&fakeSource{result: &osm.QueryResult{}}, nil, false).Detect(context.Background(), "", square[:2])
	assert.ErrorIs(t, err, ErrInvalidPolygon)
}

func TestDetectConcurrentRuns(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{}}
	d := newDetector(src, nil, false)

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.Detect(context.Background(), "x", square)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for _, res := range results {
		require.NotNil(t, res)
		assert.Len(t, res.Buildings, res.TargetCount)
		for _, b := range res.Buildings {
			assert.False(t, ids[b.ID], b.ID)
			ids[b.ID] = true
		}
	}
}
