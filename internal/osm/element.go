package osm

import (
	"encoding/json"
	"math"
	"strings"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
)

// Location records which part of a raw element supplied its coordinate.
type Location int

const (
	Unlocatable Location = iota
	WithCenter
	WithLatLon
	WithGeometry
)

type rawCoord struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (c *rawCoord) latLng() (model.LatLng, bool) {
	if c == nil || c.Lat == nil || c.Lon == nil {
		return model.LatLng{}, false
	}
	return model.LatLng{Lat: *c.Lat, Lng: *c.Lon}, true
}

// rawElement mirrors one entry of the Overpass "elements" array. It never
// leaves this package.
type rawElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat"`
	Lon      *float64          `json:"lon"`
	Center   *rawCoord         `json:"center"`
	Geometry []rawCoord        `json:"geometry"`
	Tags     map[string]string `json:"tags"`
}

type rawResponse struct {
	Elements []rawElement `json:"elements"`
	Remark   string       `json:"remark"`
}

// Element is a located OSM building or street.
type Element struct {
	ID       int64
	Type     string
	Tags     map[string]string
	Center   model.LatLng
	Location Location
	Geometry []model.LatLng
}

func (e Element) Tag(key string) string {
	return strings.TrimSpace(e.Tags[key])
}

func (e Element) Name() string          { return e.Tag("name") }
func (e Element) HouseNumber() string   { return e.Tag("addr:housenumber") }
func (e Element) Street() string        { return e.Tag("addr:street") }
func (e Element) BuildingValue() string { return e.Tag("building") }

// QueryResult holds located elements plus the count of elements dropped for
// missing or invalid coordinates.
type QueryResult struct {
	Elements []Element
	Dropped  int
}

func (r *rawElement) locate() (model.LatLng, Location) {
	if c, ok := r.Center.latLng(); ok {
		return c, WithCenter
	}
	if r.Lat != nil && r.Lon != nil {
		return model.LatLng{Lat: *r.Lat, Lng: *r.Lon}, WithLatLon
	}
	if len(r.Geometry) > 0 {
		pts := make([]model.LatLng, 0, len(r.Geometry))
		for i := range r.Geometry {
			if p, ok := r.Geometry[i].latLng(); ok {
				pts = append(pts, p)
			}
		}
		if c, err := geometry.Centroid(pts); err == nil {
			return c, WithGeometry
		}
	}
	return model.LatLng{}, Unlocatable
}

func validCoordinate(c model.LatLng) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Valid()
}

// normalize converts a raw element, returning false for elements that cannot
// be placed on the map.
func normalize(r rawElement) (Element, bool) {
	center, loc := r.locate()
	if loc == Unlocatable || !validCoordinate(center) {
		return Element{}, false
	}

	e := Element{
		ID:       r.ID,
		Type:     r.Type,
		Tags:     r.Tags,
		Center:   center,
		Location: loc,
	}
	if len(r.Geometry) > 0 {
		e.Geometry = make([]model.LatLng, 0, len(r.Geometry))
		for i := range r.Geometry {
			if p, ok := r.Geometry[i].latLng(); ok && validCoordinate(p) {
				e.Geometry = append(e.Geometry, p)
			}
		}
	}
	return e, true
}

func normalizeAll(raw []rawElement) *QueryResult {
	res := &QueryResult{Elements: make([]Element, 0, len(raw))}
	for _, r := range raw {
		e, ok := normalize(r)
		if !ok {
			res.Dropped++
			continue
		}
		res.Elements = append(res.Elements, e)
	}
	return res
}

// ParseResponse decodes an Overpass JSON body into located elements.
func ParseResponse(data []byte) (*QueryResult, error) {
	var resp rawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return normalizeAll(resp.Elements), nil
}
