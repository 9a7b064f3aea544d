// Package geometry holds the polygon primitives the grid and detection
// pipeline is built on. Rings are WGS84 lat/lng lists and may be given with
// or without the closing vertex.
package geometry

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"

	"knockwise/internal/model"
)

var ErrEmptyInput = errors.New("geometry: empty input")

// edgeEpsilon is the tolerance, in degrees, for treating a point as lying on
// a ring edge. About 1cm at the equator.
const edgeEpsilon = 1e-7

// PointInPolygon reports whether p is inside ring. Points on an edge or
// vertex count as inside.
func PointInPolygon(p model.LatLng, ring []model.LatLng) bool {
	r := model.OrbRing(ring)
	if len(r) < 4 {
		return false
	}
	pt := p.Point()
	for i := 0; i < len(r)-1; i++ {
		if onSegment(pt, r[i], r[i+1]) {
			return true
		}
	}
	return planar.RingContains(r, pt)
}

func onSegment(p, a, b orb.Point) bool {
	minX, maxX := math.Min(a[0], b[0]), math.Max(a[0], b[0])
	minY, maxY := math.Min(a[1], b[1]), math.Max(a[1], b[1])
	if p[0] < minX-edgeEpsilon || p[0] > maxX+edgeEpsilon ||
		p[1] < minY-edgeEpsilon || p[1] > maxY+edgeEpsilon {
		return false
	}
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1]) <= edgeEpsilon
	}
	cross := dx*(p[1]-a[1]) - dy*(p[0]-a[0])
	return math.Abs(cross)/length <= edgeEpsilon
}

// PolygonArea returns the spherical area of ring in square meters.
func PolygonArea(ring []model.LatLng) float64 {
	r := model.OrbRing(ring)
	if len(r) < 4 {
		return 0
	}
	return math.Abs(geo.Area(orb.Polygon{r}))
}

// BoundingBoxOf returns the extrema of points.
func BoundingBoxOf(points []model.LatLng) (model.BoundingBox, error) {
	if len(points) == 0 {
		return model.BoundingBox{}, ErrEmptyInput
	}
	bb := model.BoundingBox{
		North: points[0].Lat, South: points[0].Lat,
		East: points[0].Lng, West: points[0].Lng,
	}
	for _, p := range points[1:] {
		bb.North = math.Max(bb.North, p.Lat)
		bb.South = math.Min(bb.South, p.Lat)
		bb.East = math.Max(bb.East, p.Lng)
		bb.West = math.Min(bb.West, p.Lng)
	}
	return bb, nil
}

// Centroid returns the area-weighted centroid of ring. Rings with no area
// fall back to the mean of their distinct vertices.
func Centroid(ring []model.LatLng) (model.LatLng, error) {
	r := model.OrbRing(ring)
	if len(r) == 0 {
		return model.LatLng{}, ErrEmptyInput
	}
	if len(r) >= 4 {
		c, area := planar.CentroidArea(orb.Polygon{r})
		if area != 0 && !math.IsNaN(c[0]) && !math.IsNaN(c[1]) {
			return model.LatLngFromPoint(c), nil
		}
	}

	vertices := r
	if len(r) > 1 {
		vertices = r[:len(r)-1]
	}
	var sumLat, sumLng float64
	for _, p := range vertices {
		sumLat += p.Lat()
		sumLng += p.Lon()
	}
	n := float64(len(vertices))
	return model.LatLng{Lat: sumLat / n, Lng: sumLng / n}, nil
}
