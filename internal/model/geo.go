package model

import "github.com/paulmach/orb"

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to orb's lon/lat order.
func (l LatLng) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

func LatLngFromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// Valid reports whether the coordinate is inside WGS84 ranges.
func (l LatLng) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// IsDegenerate is true when the box has no width or no height.
func (b BoundingBox) IsDegenerate() bool {
	return !(b.North > b.South) || !(b.East > b.West)
}

func (b BoundingBox) Contains(p LatLng) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

func (b BoundingBox) Center() LatLng {
	return LatLng{Lat: (b.North + b.South) / 2, Lng: (b.East + b.West) / 2}
}

func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Ring returns the closed rectangle NW, NE, SE, SW, NW.
func (b BoundingBox) Ring() []LatLng {
	return []LatLng{
		{Lat: b.North, Lng: b.West},
		{Lat: b.North, Lng: b.East},
		{Lat: b.South, Lng: b.East},
		{Lat: b.South, Lng: b.West},
		{Lat: b.North, Lng: b.West},
	}
}

func BoundingBoxFromBound(bound orb.Bound) BoundingBox {
	return BoundingBox{
		North: bound.Max.Lat(),
		South: bound.Min.Lat(),
		East:  bound.Max.Lon(),
		West:  bound.Min.Lon(),
	}
}

// OrbRing converts a coordinate list to an orb ring, closing it if needed.
func OrbRing(coords []LatLng) orb.Ring {
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, c.Point())
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return ring
}

func LatLngsFromRing(ring orb.Ring) []LatLng {
	out := make([]LatLng, 0, len(ring))
	for _, p := range ring {
		out = append(out, LatLngFromPoint(p))
	}
	return out
}
