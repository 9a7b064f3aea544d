package osm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knockwise/internal/model"
)

func TestPBFSourceFetchBuildings(t *testing.T) {
	src := newPBFSource([]Element{
		{ID: 3, Center: model.LatLng{Lat: 43.645, Lng: -79.385}, Tags: map[string]string{"building": "house"}},
		{ID: 1, Center: model.LatLng{Lat: 43.641, Lng: -79.389}, Tags: map[string]string{"building": "garage"}},
		{ID: 2, Center: model.LatLng{Lat: 44.0, Lng: -79.0}, Tags: map[string]string{"building": "house"}},
	})
	assert.Equal(t, 3, src.Count())

	res, err := src.FetchBuildings(context.Background(), BuildingQuery{BBox: testBBox})
	require.NoError(t, err)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, int64(1), res.Elements[0].ID)
	assert.Equal(t, int64(3), res.Elements[1].ID)

	res, err = src.FetchBuildings(context.Background(), BuildingQuery{BBox: testBBox, Types: []string{"residential"}})
	require.NoError(t, err)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, int64(3), res.Elements[0].ID)
}

func TestPBFSourceDegenerateBBox(t *testing.T) {
	src := newPBFSource(nil)
	res, err := src.FetchBuildings(context.Background(), BuildingQuery{BBox: model.BoundingBox{North: 1, South: 1, East: 2, West: 1}})
	require.NoError(t, err)
	assert.Empty(t, res.Elements)
}

func TestPBFSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPBFSource(nil).FetchBuildings(ctx, BuildingQuery{BBox: testBBox})
	assert.ErrorIs(t, err, context.Canceled)
}
