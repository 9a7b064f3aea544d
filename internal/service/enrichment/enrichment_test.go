package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knockwise/internal/geocoding"
	"knockwise/internal/model"
	"knockwise/internal/osm"
)

var (
	square = []model.LatLng{
		{Lat: 43.65, Lng: -79.39},
		{Lat: 43.65, Lng: -79.38},
		{Lat: 43.64, Lng: -79.38},
		{Lat: 43.64, Lng: -79.39},
	}
	squareBBox = model.BoundingBox{North: 43.65, South: 43.64, East: -79.38, West: -79.39}
)

type fakeSource struct {
	result  *osm.QueryResult
	err     error
	streets *osm.QueryResult
	queries []osm.BuildingQuery
}

func (f *fakeSource) FetchBuildings(ctx context.Context, q osm.BuildingQuery) (*osm.QueryResult, error) {
	f.queries = append(f.queries, q)
	return f.result, f.err
}

func (f *fakeSource) FetchStreets(ctx context.Context, q osm.StreetQuery) (*osm.QueryResult, error) {
	if f.streets == nil {
		return nil, errors.New("no streets")
	}
	return f.streets, nil
}

type fakeGeocoder struct {
	addresses map[int64]string // keyed by rounded lat*1e4
	fail      map[int64]bool
	calls     []model.LatLng
}

func key(lat float64) int64 { return int64(lat*1e4 + 0.5) }

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	g.calls = append(g.calls, model.LatLng{Lat: lat, Lng: lng})
	if g.fail[key(lat)] {
		return "", geocoding.ErrGeocodeFailed
	}
	if a, ok := g.addresses[key(lat)]; ok {
		return a, nil
	}
	return "", geocoding.ErrNotFound
}

func element(id int64, lat, lng float64, tags map[string]string) osm.Element {
	return osm.Element{ID: id, Type: "way", Center: model.LatLng{Lat: lat, Lng: lng}, Tags: tags, Location: osm.WithCenter}
}

func TestEnrichFiltersGeocodesAndGroups(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{
		Elements: []osm.Element{
			element(1, 43.6410, -79.385, nil),
			element(2, 43.6420, -79.385, map[string]string{"name": "Corner Store"}),
			element(3, 43.6600, -79.385, nil), // outside polygon
			element(4, 43.6430, -79.385, nil),
		},
		Dropped: 1,
	}}
	geo := &fakeGeocoder{addresses: map[int64]string{
		436410: "12 King St W, Toronto, ON",
		436420: "14 King St W, Toronto, ON",
		436430: "3 Queen St, Toronto, ON",
	}}

	res, err := NewEnricher(src, nil, geo, Options{BuildingTypes: []string{"residential"}}).Enrich(context.Background(), square, squareBBox)
	require.NoError(t, err)

	require.Len(t, src.queries, 1)
	assert.Equal(t, squareBBox, src.queries[0].BBox)
	assert.Equal(t, []string{"residential"}, src.queries[0].Types)

	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 1, res.Outside)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Buildings, 3)
	assert.Len(t, geo.calls, 3)

	b := res.Buildings[0]
	assert.Equal(t, "real-1", b.ID)
	assert.Equal(t, model.BuildingTypeReal, b.Type)
	assert.Equal(t, model.BuildingStatusNotVisited, b.Status)
	assert.Equal(t, 12, b.BuildingNumber)
	assert.Equal(t, "12 King St W", b.Name)
	assert.Equal(t, &[2]float64{-79.385, 43.641}, b.Coordinates)
	assert.Equal(t, "Corner Store", res.Buildings[1].Name)

	require.Len(t, res.Streets, 2)
	assert.Equal(t, model.StreetInfo{Name: "King St W", TotalBuildings: 2, BuildingNumbers: []int{12, 14}}, res.Streets[0])
	assert.Equal(t, model.StreetInfo{Name: "Queen St", TotalBuildings: 1, BuildingNumbers: []int{3}}, res.Streets[1])
}

func TestEnrichPartialGeocodeFailure(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{Elements: []osm.Element{
		element(1, 43.6410, -79.385, nil),
		element(2, 43.6420, -79.384, map[string]string{"addr:housenumber": "88", "addr:street": "Pape Ave"}),
		element(3, 43.6430, -79.383, nil),
	}}}
	geo := &fakeGeocoder{
		addresses: map[int64]string{436410: "1 A St", 436430: "3 A St"},
		fail:      map[int64]bool{436420: true},
	}

	res, err := NewEnricher(src, nil, geo, Options{}).Enrich(context.Background(), square, squareBBox)
	require.NoError(t, err)
	require.Len(t, res.Buildings, 3)
	assert.Equal(t, 1, res.GeocodeFailures)

	failed := res.Buildings[1]
	assert.Equal(t, "real-2", failed.ID)
	assert.Equal(t, model.FallbackAddress(43.642, -79.384), failed.Address)
	assert.Contains(t, failed.Address, "Building at 43.642")
	assert.Equal(t, 88, failed.BuildingNumber)
	assert.Equal(t, 43.642, failed.Lat)

	names := []string{res.Streets[0].Name, res.Streets[1].Name}
	assert.Equal(t, []string{"A St", "Pape Ave"}, names)
}

func TestEnrichQueryFailurePropagates(t *testing.T) {
	qerr := &osm.QueryFailedError{Attempts: 3, Err: errors.New("timeout")}
	src := &fakeSource{err: qerr}

	_, err := NewEnricher(src, nil, &fakeGeocoder{}, Options{}).Enrich(context.Background(), square, squareBBox)
	assert.ErrorIs(t, err, osm.ErrQueryFailed)
}

func TestEnrichCancelled(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{Elements: []osm.Element{
		element(1, 43.6410, -79.385, nil),
		element(2, 43.6420, -79.385, nil),
	}}}
	ctx, cancel := context.WithCancel(context.Background())
	geo := &cancellingGeocoder{cancel: cancel}

	_, err := NewEnricher(src, nil, geo, Options{}).Enrich(ctx, square, squareBBox)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, geo.calls)
}

type cancellingGeocoder struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancellingGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	g.calls++
	g.cancel()
	return "", ctx.Err()
}

func TestEnrichMergesOSMStreets(t *testing.T) {
	src := &fakeSource{
		result: &osm.QueryResult{Elements: []osm.Element{element(1, 43.6410, -79.385, nil)}},
		streets: &osm.QueryResult{Elements: []osm.Element{
			{ID: 100, Center: model.LatLng{Lat: 43.645, Lng: -79.385}, Tags: map[string]string{"name": "King St W"}},
			{ID: 101, Center: model.LatLng{Lat: 43.646, Lng: -79.386}, Tags: map[string]string{"name": "Empty Lane"}},
			{ID: 102, Center: model.LatLng{Lat: 43.700, Lng: -79.386}, Tags: map[string]string{"name": "Far Road"},
				Geometry: []model.LatLng{{Lat: 43.70, Lng: -79.386}, {Lat: 43.645, Lng: -79.386}}},
			{ID: 103, Center: model.LatLng{Lat: 43.700, Lng: -79.386}, Tags: map[string]string{"name": "Outside Road"}},
		}},
	}
	geo := &fakeGeocoder{addresses: map[int64]string{436410: "12 King St W, Toronto"}}

	res, err := NewEnricher(src, src, geo, Options{}).Enrich(context.Background(), square, squareBBox)
	require.NoError(t, err)

	require.Len(t, res.Streets, 3)
	assert.Equal(t, "King St W", res.Streets[0].Name)
	assert.Equal(t, 1, res.Streets[0].TotalBuildings)
	assert.Equal(t, model.StreetInfo{Name: "Empty Lane", BuildingNumbers: []int{}}, res.Streets[1])
	assert.Equal(t, "Far Road", res.Streets[2].Name)
}

func TestEnrichNoBuildings(t *testing.T) {
	src := &fakeSource{result: &osm.QueryResult{}}
	res, err := NewEnricher(src, nil, &fakeGeocoder{}, Options{}).Enrich(context.Background(), square, squareBBox)
	require.NoError(t, err)
	assert.Empty(t, res.Buildings)
	assert.Empty(t, res.Streets)
}

func TestParseHouseNumber(t *testing.T) {
	assert.Equal(t, 123, ParseHouseNumber("123 King St W, Toronto"))
	assert.Equal(t, 12, ParseHouseNumber("  12A Elm St"))
	assert.Equal(t, 0, ParseHouseNumber("King St W"))
	assert.Equal(t, 0, ParseHouseNumber("Building at 43.6, -79.4"))
	assert.Equal(t, 0, ParseHouseNumber(""))
}

func TestParseStreetName(t *testing.T) {
	assert.Equal(t, "King St W", ParseStreetName("123 King St W, Toronto, ON"))
	assert.Equal(t, "Elm St", ParseStreetName("12A Elm St"))
	assert.Equal(t, "Main Road", ParseStreetName("10-12 Main Road, Town"))
	assert.Equal(t, "", ParseStreetName("Riverdale Park, Toronto"))
	assert.Equal(t, "", ParseStreetName("Building at 43.6, -79.4"))
}
