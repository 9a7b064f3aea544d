package grid

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"knockwise/internal/model"
)

// FeatureCollection renders blocks, and the boundary when given, as GeoJSON
// for map overlays and file export.
func FeatureCollection(blocks []model.GridBlock, boundary []model.LatLng) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(boundary) >= 3 {
		f := geojson.NewFeature(orb.Polygon{model.OrbRing(boundary)})
		f.Properties["kind"] = "boundary"
		fc.Append(f)
	}

	for _, b := range blocks {
		f := geojson.NewFeature(orb.Polygon{model.OrbRing(b.Coordinates)})
		f.ID = b.ID
		f.Properties["kind"] = "block"
		f.Properties["id"] = b.ID
		f.Properties["name"] = b.Name
		f.Properties["row"] = b.Row
		f.Properties["col"] = b.Col
		f.Properties["area_km2"] = b.Area
		f.Properties["state"] = b.State().String()
		if b.IsDataLoaded {
			f.Properties["buildings"] = len(b.Buildings)
			f.Properties["streets"] = len(b.Streets)
		}
		fc.Append(f)
	}
	return fc
}
