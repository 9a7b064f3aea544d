package grid

import (
	"errors"
	"fmt"
	"math"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/util"
)

// ErrTooManyBlocks is returned when a cell size would produce a grid larger
// than the configured cap.
var ErrTooManyBlocks = errors.New("grid: too many blocks")

// spanEpsilon absorbs floating drift when dividing spans by the cell size, so
// 0.01/0.005 yields 2 columns instead of 3.
const spanEpsilon = 1e-9

// BlockID is stable for a given row and column.
func BlockID(row, col int) string {
	return fmt.Sprintf("block-r%d-c%d", row, col)
}

// Dimensions returns the row and column count for bbox at cellSizeDeg.
// Degenerate input yields 0, 0.
func Dimensions(bbox model.BoundingBox, cellSizeDeg float64) (rows, cols int) {
	if bbox.IsDegenerate() || !(cellSizeDeg > 0) {
		return 0, 0
	}
	rows = int(math.Ceil((bbox.North-bbox.South)/cellSizeDeg - spanEpsilon))
	cols = int(math.Ceil((bbox.East-bbox.West)/cellSizeDeg - spanEpsilon))
	return max(rows, 1), max(cols, 1)
}

// Subdivide partitions bbox into square cells of cellSizeDeg degrees. Rows run
// north to south and columns west to east; blocks are returned row-major. The
// last row and column are clipped to the box edge. A degenerate box returns an
// empty list.
func Subdivide(bbox model.BoundingBox, cellSizeDeg float64) []model.GridBlock {
	rows, cols := Dimensions(bbox, cellSizeDeg)
	if rows == 0 || cols == 0 {
		return []model.GridBlock{}
	}

	blocks := make([]model.GridBlock, 0, rows*cols)
	for r := 0; r < rows; r++ {
		north := bbox.North - float64(r)*cellSizeDeg
		south := bbox.North - float64(r+1)*cellSizeDeg
		if r == rows-1 || south < bbox.South {
			south = bbox.South
		}
		for c := 0; c < cols; c++ {
			west := bbox.West + float64(c)*cellSizeDeg
			east := bbox.West + float64(c+1)*cellSizeDeg
			if c == cols-1 || east > bbox.East {
				east = bbox.East
			}

			cell := model.BoundingBox{North: north, South: south, East: east, West: west}
			ring := cell.Ring()
			blocks = append(blocks, model.GridBlock{
				ID:          BlockID(r, c),
				Name:        fmt.Sprintf("Block %d", len(blocks)+1),
				Row:         r,
				Col:         c,
				Coordinates: ring,
				Center:      cell.Center(),
				Area:        geometry.PolygonArea(ring) / 1e6,
			})
		}
	}
	return blocks
}

// SubdivideLimited is Subdivide with a cap on the number of blocks.
func SubdivideLimited(bbox model.BoundingBox, cellSizeDeg float64, maxBlocks int) ([]model.GridBlock, error) {
	rows, cols := Dimensions(bbox, cellSizeDeg)
	if maxBlocks > 0 && rows*cols > maxBlocks {
		return nil, fmt.Errorf("%w: %d x %d exceeds %d", ErrTooManyBlocks, rows, cols, maxBlocks)
	}
	return Subdivide(bbox, cellSizeDeg), nil
}

// CellSizeFromMeters converts a cell side in meters to degrees of latitude.
// Cells stay square in degrees, so they are narrower east-west away from the
// equator.
func CellSizeFromMeters(meters float64) float64 {
	return util.MetersToLatDegrees(meters)
}

// ClipToBoundary drops blocks that do not touch ring: none of their corners or
// center lie inside it and none of its vertices lie inside the block.
func ClipToBoundary(blocks []model.GridBlock, ring []model.LatLng) []model.GridBlock {
	out := make([]model.GridBlock, 0, len(blocks))
	for _, b := range blocks {
		if touches(b, ring) {
			out = append(out, b)
		}
	}
	return out
}

func touches(b model.GridBlock, ring []model.LatLng) bool {
	if geometry.PointInPolygon(b.Center, ring) {
		return true
	}
	for _, corner := range b.Coordinates {
		if geometry.PointInPolygon(corner, ring) {
			return true
		}
	}
	bounds := b.Bounds()
	for _, v := range ring {
		if bounds.Contains(v) {
			return true
		}
	}
	return false
}
