package osm

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/qedus/osmpbf"
	"github.com/sirupsen/logrus"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
)

// pointExtent is the side of the rectangle indexed for a building center.
const pointExtent = 1e-9

type elementSpatial struct {
	Element Element
}

// Bounds implements the rtreego.Spatial interface
func (s *elementSpatial) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(
		rtreego.Point{s.Element.Center.Lng, s.Element.Center.Lat},
		[]float64{pointExtent, pointExtent},
	)
	return rect
}

// PBFSource serves building queries from an in-memory index built from an
// .osm.pbf extract, for offline use or when Overpass is unavailable.
type PBFSource struct {
	tree    *rtreego.Rtree
	count   int
	skipped int
}

func newPBFSource(elements []Element) *PBFSource {
	s := &PBFSource{tree: rtreego.NewTree(2, 25, 50)}
	for _, e := range elements {
		s.tree.Insert(&elementSpatial{Element: e})
		s.count++
	}
	return s
}

// Count returns the number of indexed buildings.
func (s *PBFSource) Count() int {
	return s.count
}

// Skipped returns the number of building ways dropped for missing nodes.
func (s *PBFSource) Skipped() int {
	return s.skipped
}

// FetchBuildings returns the indexed buildings inside q.BBox, ordered by id.
func (s *PBFSource) FetchBuildings(ctx context.Context, q BuildingQuery) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &QueryResult{}
	if q.BBox.IsDegenerate() {
		return res, nil
	}
	rect, err := rtreego.NewRect(
		rtreego.Point{q.BBox.West, q.BBox.South},
		[]float64{q.BBox.East - q.BBox.West, q.BBox.North - q.BBox.South},
	)
	if err != nil {
		return nil, fmt.Errorf("bbox rect: %w", err)
	}

	var allowed map[string]struct{}
	if values := ExpandBuildingTypes(q.Types); len(values) > 0 {
		allowed = make(map[string]struct{}, len(values))
		for _, v := range values {
			allowed[v] = struct{}{}
		}
	}

	for _, item := range s.tree.SearchIntersect(rect) {
		e := item.(*elementSpatial).Element
		if !q.BBox.Contains(e.Center) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[e.BuildingValue()]; !ok {
				continue
			}
		}
		res.Elements = append(res.Elements, e)
	}
	sort.Slice(res.Elements, func(i, j int) bool {
		return res.Elements[i].ID < res.Elements[j].ID
	})
	return res, nil
}

// LoadPBF decodes building ways from an .osm.pbf file in two passes: nodes
// first, then ways tagged building. Only buildings whose center falls inside
// clip are kept; a nil clip keeps everything.
func LoadPBF(ctx context.Context, path string, clip *model.BoundingBox) (*PBFSource, error) {
	log := logrus.WithField("component", "pbf")
	log.Printf("Processing OSM file: %s", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSM file: %w", err)
	}
	defer file.Close()

	log.Println("First pass: collecting nodes...")
	nodes := make(map[int64]model.LatLng)
	err = decodeAll(ctx, file, func(obj interface{}) {
		if node, ok := obj.(*osmpbf.Node); ok {
			nodes[node.ID] = model.LatLng{Lat: node.Lat, Lng: node.Lon}
			if len(nodes)%1000000 == 0 {
				log.Printf("Processed %d nodes...", len(nodes))
			}
		}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Collected %d nodes", len(nodes))

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind OSM file: %w", err)
	}

	log.Println("Second pass: processing buildings...")
	var elements []Element
	skipped := 0
	err = decodeAll(ctx, file, func(obj interface{}) {
		way, ok := obj.(*osmpbf.Way)
		if !ok {
			return
		}
		if v, ok := way.Tags["building"]; !ok || v == "no" {
			return
		}
		e, ok := buildingFromWay(way, nodes)
		if !ok {
			skipped++
			return
		}
		if clip != nil && !clip.Contains(e.Center) {
			return
		}
		elements = append(elements, e)
	})
	if err != nil {
		return nil, err
	}

	src := newPBFSource(elements)
	src.skipped = skipped
	log.Printf("Processing complete. Indexed %d buildings, skipped %d", src.count, skipped)
	return src, nil
}

func decodeAll(ctx context.Context, r io.Reader, fn func(interface{})) error {
	decoder := osmpbf.NewDecoder(r)
	decoder.SetBufferSize(osmpbf.MaxBlobSize)
	if err := decoder.Start(runtime.GOMAXPROCS(-1)); err != nil {
		return fmt.Errorf("starting decoder: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := decoder.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error decoding OSM data: %w", err)
		}
		fn(obj)
	}
}

func buildingFromWay(way *osmpbf.Way, nodes map[int64]model.LatLng) (Element, bool) {
	if len(way.NodeIDs) < 3 {
		return Element{}, false
	}
	outline := make([]model.LatLng, 0, len(way.NodeIDs))
	for _, id := range way.NodeIDs {
		if p, ok := nodes[id]; ok {
			outline = append(outline, p)
		}
	}
	if len(outline) < 3 {
		return Element{}, false
	}
	center, err := geometry.Centroid(outline)
	if err != nil || !validCoordinate(center) {
		return Element{}, false
	}
	return Element{
		ID:       way.ID,
		Type:     "way",
		Tags:     way.Tags,
		Center:   center,
		Location: WithGeometry,
		Geometry: outline,
	}, true
}
