package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"knockwise/internal/geocoding"
	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/osm"
)

type BuildingSource interface {
	FetchBuildings(ctx context.Context, q osm.BuildingQuery) (*osm.QueryResult, error)
}

type StreetSource interface {
	FetchStreets(ctx context.Context, q osm.StreetQuery) (*osm.QueryResult, error)
}

// Result is the enriched content of one polygon.
type Result struct {
	Buildings       []model.BuildingInfo
	Streets         []model.StreetInfo
	Found           int // elements returned by the source
	Dropped         int // elements without valid coordinates
	Outside         int // elements inside the bbox but outside the polygon
	GeocodeFailures int
}

type Options struct {
	BuildingTypes []string
}

// Enricher finds the buildings inside a polygon and labels them with postal
// addresses. Geocoding is sequential; the geocoder is expected to carry its
// own rate limit.
type Enricher struct {
	buildings BuildingSource
	streets   StreetSource
	geocoder  geocoding.Geocoder
	opts      Options
	log       *logrus.Entry
}

// NewEnricher builds an enricher. streets may be nil, in which case street
// groups come from geocoded addresses only.
func NewEnricher(buildings BuildingSource, streets StreetSource, geocoder geocoding.Geocoder, opts Options) *Enricher {
	return &Enricher{
		buildings: buildings,
		streets:   streets,
		geocoder:  geocoder,
		opts:      opts,
		log:       logrus.WithField("component", "enrichment"),
	}
}

// Enrich runs query, polygon filter, reverse geocoding and street grouping for
// ring. A failed building query is returned as is; a failed geocode falls
// back to a coordinate label. Cancellation aborts the batch.
func (e *Enricher) Enrich(ctx context.Context, ring []model.LatLng, bbox model.BoundingBox) (*Result, error) {
	start := time.Now()

	res, err := e.buildings.FetchBuildings(ctx, osm.BuildingQuery{BBox: bbox, Types: e.opts.BuildingTypes})
	if err != nil {
		return nil, err
	}

	inside := make([]osm.Element, 0, len(res.Elements))
	for _, el := range res.Elements {
		if geometry.PointInPolygon(el.Center, ring) {
			inside = append(inside, el)
		}
	}
	out := &Result{
		Found:   len(res.Elements),
		Dropped: res.Dropped,
		Outside: len(res.Elements) - len(inside),
	}
	if len(res.Elements) == 0 {
		e.log.Info("Query succeeded, no buildings in bounding box")
	} else {
		e.log.Printf("Found %d buildings, %d inside polygon", len(res.Elements), len(inside))
	}

	out.Buildings = make([]model.BuildingInfo, 0, len(inside))
	streetOf := make([]string, 0, len(inside))
	for i, el := range inside {
		b, street, failed, err := e.describe(ctx, el)
		if err != nil {
			return nil, err
		}
		if failed {
			out.GeocodeFailures++
		}
		out.Buildings = append(out.Buildings, b)
		streetOf = append(streetOf, street)

		if (i+1)%10 == 0 || i+1 == len(inside) {
			e.log.Printf("Geocoded %d/%d buildings", i+1, len(inside))
		}
	}

	out.Streets = GroupByStreet(out.Buildings, streetOf)
	if e.streets != nil {
		out.Streets = e.mergeOSMStreets(ctx, out.Streets, ring, bbox)
	}

	e.log.Printf("Enrichment done in %v: %d buildings, %d streets, %d geocode failures",
		time.Since(start), len(out.Buildings), len(out.Streets), out.GeocodeFailures)
	return out, nil
}

// describe geocodes one element. failed reports a fallback label; err is only
// set when ctx is done.
func (e *Enricher) describe(ctx context.Context, el osm.Element) (b model.BuildingInfo, street string, failed bool, err error) {
	lat, lng := el.Center.Lat, el.Center.Lng
	b = model.BuildingInfo{
		ID:          model.RealBuildingID(el.ID),
		Lat:         lat,
		Lng:         lng,
		Status:      model.BuildingStatusNotVisited,
		Type:        model.BuildingTypeReal,
		Coordinates: &[2]float64{lng, lat},
	}

	addr, gerr := e.geocoder.ReverseGeocode(ctx, lat, lng)
	if gerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return b, "", false, ctxErr
		}
		if errors.Is(gerr, context.Canceled) || errors.Is(gerr, context.DeadlineExceeded) {
			return b, "", false, gerr
		}
		e.log.WithError(gerr).Warnf("Reverse geocode failed for %s, using fallback", b.ID)
		failed = true
		addr = model.FallbackAddress(lat, lng)
		b.BuildingNumber = ParseHouseNumber(el.HouseNumber())
		street = el.Street()
	} else {
		b.BuildingNumber = ParseHouseNumber(addr)
		street = ParseStreetName(addr)
		if b.BuildingNumber == 0 {
			b.BuildingNumber = ParseHouseNumber(el.HouseNumber())
		}
	}

	b.Address = addr
	b.Name = el.Name()
	if b.Name == "" {
		b.Name = firstSegment(addr)
	}
	return b, street, failed, nil
}

func firstSegment(addr string) string {
	if i := strings.IndexByte(addr, ','); i >= 0 {
		return strings.TrimSpace(addr[:i])
	}
	return strings.TrimSpace(addr)
}

// GroupByStreet aggregates buildings by street name in order of first
// appearance. streets[i] is the street of buildings[i]; empty names are
// skipped. House numbers keep building order and are not deduplicated.
func GroupByStreet(buildings []model.BuildingInfo, streets []string) []model.StreetInfo {
	index := make(map[string]int)
	out := make([]model.StreetInfo, 0)
	for i, b := range buildings {
		if i >= len(streets) || streets[i] == "" {
			continue
		}
		key := strings.ToLower(streets[i])
		pos, ok := index[key]
		if !ok {
			pos = len(out)
			index[key] = pos
			out = append(out, model.StreetInfo{Name: streets[i], BuildingNumbers: []int{}})
		}
		out[pos].TotalBuildings++
		if b.BuildingNumber > 0 {
			out[pos].BuildingNumbers = append(out[pos].BuildingNumbers, b.BuildingNumber)
		}
	}
	return out
}

// mergeOSMStreets appends named streets that run through the polygon but had
// no geocoded building. Street lookup is best effort.
func (e *Enricher) mergeOSMStreets(ctx context.Context, streets []model.StreetInfo, ring []model.LatLng, bbox model.BoundingBox) []model.StreetInfo {
	res, err := e.streets.FetchStreets(ctx, osm.StreetQuery{BBox: bbox, WithGeometry: true})
	if err != nil {
		e.log.WithError(err).Warn("Street query failed, keeping address-derived streets only")
		return streets
	}

	known := make(map[string]bool, len(streets))
	for _, s := range streets {
		known[strings.ToLower(s.Name)] = true
	}
	for _, el := range res.Elements {
		name := el.Name()
		if name == "" || known[strings.ToLower(name)] || !crosses(el, ring) {
			continue
		}
		known[strings.ToLower(name)] = true
		streets = append(streets, model.StreetInfo{Name: name, BuildingNumbers: []int{}})
	}
	return streets
}

func crosses(el osm.Element, ring []model.LatLng) bool {
	if geometry.PointInPolygon(el.Center, ring) {
		return true
	}
	for _, p := range el.Geometry {
		if geometry.PointInPolygon(p, ring) {
			return true
		}
	}
	return false
}

// String is used in log lines.
func (r *Result) String() string {
	return fmt.Sprintf("found=%d inside=%d dropped=%d geocodeFailures=%d streets=%d",
		r.Found, len(r.Buildings), r.Dropped, r.GeocodeFailures, len(r.Streets))
}
