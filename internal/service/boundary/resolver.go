package boundary

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"knockwise/internal/geocoding"
	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/util"
)

const DefaultFallbackRadiusMeters = 1000.0

var ErrUnresolved = errors.New("boundary: community not found and no center given")

// Searcher finds places by name. NominatimClient implements it.
type Searcher interface {
	Search(ctx context.Context, query string, polygons bool) ([]geocoding.Place, error)
}

// Resolver turns a community name into a boundary polygon.
type Resolver struct {
	search Searcher
	radius float64
	log    *logrus.Entry
}

func NewResolver(search Searcher, fallbackRadiusMeters float64) *Resolver {
	if fallbackRadiusMeters <= 0 {
		fallbackRadiusMeters = DefaultFallbackRadiusMeters
	}
	return &Resolver{
		search: search,
		radius: fallbackRadiusMeters,
		log:    logrus.WithField("component", "boundary"),
	}
}

// Resolve prefers the polygon of the first search hit that has one. When no
// hit carries a polygon it falls back to a square around center, or around
// the first hit when center is nil.
func (r *Resolver) Resolve(ctx context.Context, name string, center *model.LatLng) (*model.CommunityBoundary, error) {
	if name != "" && r.search != nil {
		places, err := r.search.Search(ctx, name, true)
		switch {
		case err == nil:
			for _, p := range places {
				if ring := largestOuterRing(p.GeoJSON); ring != nil {
					r.log.Printf("Resolved %q to a %d vertex polygon", name, len(ring))
					return FromPolygon(name, model.LatLngsFromRing(ring), model.BoundarySourceNominatim)
				}
			}
			if center == nil && len(places) > 0 {
				if lat, lng, err := places[0].LatLng(); err == nil {
					center = &model.LatLng{Lat: lat, Lng: lng}
				}
			}
			r.log.Printf("No polygon for %q, using fallback square", name)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			r.log.WithError(err).Warnf("Boundary search for %q failed", name)
		}
	}

	if center == nil || !center.Valid() {
		return nil, ErrUnresolved
	}
	return FromPolygon(name, Square(*center, r.radius), model.BoundarySourceFallback)
}

// FromPolygon derives bounds and center for a boundary polygon.
func FromPolygon(name string, ring []model.LatLng, source model.BoundarySource) (*model.CommunityBoundary, error) {
	bounds, err := geometry.BoundingBoxOf(ring)
	if err != nil {
		return nil, fmt.Errorf("boundary %q: %w", name, err)
	}
	center, err := geometry.Centroid(ring)
	if err != nil {
		return nil, fmt.Errorf("boundary %q: %w", name, err)
	}
	return &model.CommunityBoundary{
		Name:        name,
		Center:      center,
		Bounds:      bounds,
		Coordinates: ring,
		Source:      source,
	}, nil
}

// Square is a closed ring with the given half side around center.
func Square(center model.LatLng, halfSideMeters float64) []model.LatLng {
	north, east := util.Offset(center.Lat, center.Lng, halfSideMeters, halfSideMeters)
	south, west := util.Offset(center.Lat, center.Lng, -halfSideMeters, -halfSideMeters)
	return model.BoundingBox{North: north, South: south, East: east, West: west}.Ring()
}

func largestOuterRing(raw []byte) orb.Ring {
	if len(raw) == 0 {
		return nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil
	}

	var candidates []orb.Ring
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if len(geom) > 0 {
			candidates = append(candidates, geom[0])
		}
	case orb.MultiPolygon:
		for _, p := range geom {
			if len(p) > 0 {
				candidates = append(candidates, p[0])
			}
		}
	}

	var best orb.Ring
	bestArea := 0.0
	for _, ring := range candidates {
		if len(ring) < 4 {
			continue
		}
		if a := geometry.PolygonArea(model.LatLngsFromRing(ring)); a > bestArea {
			best, bestArea = ring, a
		}
	}
	return best
}
