package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knockwise/internal/model"
)

// Toronto-ish square, 0.01° on each side.
var square = []model.LatLng{
	{Lat: 43.65, Lng: -79.39},
	{Lat: 43.65, Lng: -79.38},
	{Lat: 43.64, Lng: -79.38},
	{Lat: 43.64, Lng: -79.39},
}

var triangle = []model.LatLng{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 2},
	{Lat: 2, Lng: 0},
}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		name string
		p    model.LatLng
		ring []model.LatLng
		want bool
	}{
		{"center of square", model.LatLng{Lat: 43.645, Lng: -79.385}, square, true},
		{"far outside", model.LatLng{Lat: 10, Lng: 10}, square, false},
		{"inside bbox but outside triangle", model.LatLng{Lat: 1.5, Lng: 1.5}, triangle, false},
		{"inside triangle", model.LatLng{Lat: 0.5, Lng: 0.5}, triangle, true},
		{"on edge", model.LatLng{Lat: 43.65, Lng: -79.385}, square, true},
		{"on hypotenuse", model.LatLng{Lat: 1, Lng: 1}, triangle, true},
		{"on vertex", model.LatLng{Lat: 43.64, Lng: -79.39}, square, true},
		{"just outside edge", model.LatLng{Lat: 43.6501, Lng: -79.385}, square, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PointInPolygon(tt.p, tt.ring))
			// repeat calls must agree
			assert.Equal(t, tt.want, PointInPolygon(tt.p, tt.ring))
		})
	}
}

func TestPointInPolygonClosedAndOpenRingsAgree(t *testing.T) {
	closed := append(append([]model.LatLng{}, square...), square[0])
	points := []model.LatLng{
		{Lat: 43.645, Lng: -79.385},
		{Lat: 43.65, Lng: -79.39},
		{Lat: 43.66, Lng: -79.385},
		{Lat: 43.64, Lng: -79.381},
	}
	for _, p := range points {
		assert.Equal(t, PointInPolygon(p, square), PointInPolygon(p, closed), "point %v", p)
	}
}

func TestPointInPolygonDegenerateRing(t *testing.T) {
	assert.False(t, PointInPolygon(model.LatLng{}, nil))
	assert.False(t, PointInPolygon(model.LatLng{}, []model.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}))
}

func TestPolygonArea(t *testing.T) {
	area := PolygonArea(square)
	// 0.01° lat ≈ 1112m, 0.01° lng at 43.645° ≈ 805m
	assert.InDelta(t, 1112*805, area, 1112*805*0.02)

	reversed := []model.LatLng{square[3], square[2], square[1], square[0]}
	assert.InDelta(t, area, PolygonArea(reversed), 1e-6)

	assert.Zero(t, PolygonArea(square[:2]))
}

func TestBoundingBoxOf(t *testing.T) {
	bb, err := BoundingBoxOf(triangle)
	require.NoError(t, err)
	assert.Equal(t, model.BoundingBox{North: 2, South: 0, East: 2, West: 0}, bb)

	_, err = BoundingBoxOf(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid(square)
	require.NoError(t, err)
	assert.InDelta(t, 43.645, c.Lat, 1e-9)
	assert.InDelta(t, -79.385, c.Lng, 1e-9)
	assert.True(t, PointInPolygon(c, square))

	c, err = Centroid(triangle)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, c.Lat, 1e-9)
	assert.InDelta(t, 2.0/3.0, c.Lng, 1e-9)
	assert.True(t, PointInPolygon(c, triangle))

	_, err = Centroid(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCentroidConvexPropertyOnRegularPolygon(t *testing.T) {
	var hexagon []model.LatLng
	for i := 0; i < 6; i++ {
		a := float64(i) * math.Pi / 3
		hexagon = append(hexagon, model.LatLng{Lat: 40 + 0.01*math.Sin(a), Lng: -75 + 0.02*math.Cos(a)})
	}
	c, err := Centroid(hexagon)
	require.NoError(t, err)
	assert.True(t, PointInPolygon(c, hexagon))
}

func TestCentroidDegenerateFallsBackToMean(t *testing.T) {
	line := []model.LatLng{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 2}, {Lat: 0, Lng: 4}}
	c, err := Centroid(line)
	require.NoError(t, err)
	assert.InDelta(t, 0, c.Lat, 1e-12)
	assert.InDelta(t, 2, c.Lng, 1e-12)
}
