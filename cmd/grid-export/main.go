package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"knockwise/internal/model"
	"knockwise/internal/osm"
	"knockwise/internal/service/grid"
)

// Command line flags
var (
	north, south, east, west float64
	cellSizeDeg              float64
	cellSizeMeters           float64
	maxBlocks                int
	pbfPath                  string
	outputFile               string
)

func init() {
	flag.Float64Var(&north, "north", 0, "North edge latitude")
	flag.Float64Var(&south, "south", 0, "South edge latitude")
	flag.Float64Var(&east, "east", 0, "East edge longitude")
	flag.Float64Var(&west, "west", 0, "West edge longitude")
	flag.Float64Var(&cellSizeDeg, "cell-size", 0.005, "Cell size in degrees")
	flag.Float64Var(&cellSizeMeters, "cell-size-m", 0, "Cell size in meters (overrides -cell-size)")
	flag.IntVar(&maxBlocks, "max-blocks", 10000, "Refuse to generate more blocks than this")
	flag.StringVar(&pbfPath, "pbf", "", "Optional .osm.pbf extract used to count buildings per block")
	flag.StringVar(&outputFile, "out", "grid.geojson", "Output GeoJSON file")
}

func main() {
	flag.Parse()
	start := time.Now()

	bbox := model.BoundingBox{North: north, South: south, East: east, West: west}
	if bbox.IsDegenerate() {
		log.Fatalf("Invalid bounding box: %+v", bbox)
	}
	if cellSizeMeters > 0 {
		cellSizeDeg = grid.CellSizeFromMeters(cellSizeMeters)
	}

	blocks, err := grid.SubdivideLimited(bbox, cellSizeDeg, maxBlocks)
	if err != nil {
		log.Fatalf("Failed to subdivide: %v", err)
	}
	log.Printf("Generated %d blocks at %.6f° cells", len(blocks), cellSizeDeg)

	fc := grid.FeatureCollection(blocks, bbox.Ring())

	if pbfPath != "" {
		counts, err := countBuildings(context.Background(), pbfPath, bbox, blocks)
		if err != nil {
			log.Fatalf("Failed to count buildings: %v", err)
		}
		for _, f := range fc.Features {
			if id, ok := f.ID.(string); ok {
				f.Properties["osm_buildings"] = counts[id]
			}
		}
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal GeoJSON: %v", err)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", outputFile, err)
	}
	log.Printf("Wrote %s in %v", outputFile, time.Since(start))
}

func countBuildings(ctx context.Context, path string, bbox model.BoundingBox, blocks []model.GridBlock) (map[string]int, error) {
	src, err := osm.LoadPBF(ctx, path, &bbox)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(blocks))
	for _, b := range blocks {
		res, err := src.FetchBuildings(ctx, osm.BuildingQuery{BBox: b.Bounds()})
		if err != nil {
			return nil, err
		}
		counts[b.ID] = len(res.Elements)
	}
	return counts, nil
}
