package grid

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"knockwise/internal/model"
)

// Index answers which block covers a point.
type Index struct {
	tree *rtreego.Rtree
}

// NewIndex indexes blocks. The index keeps pointers into the slice, so the
// caller must not reorder it while the index is in use.
func NewIndex(blocks []model.GridBlock) *Index {
	idx := &Index{tree: rtreego.NewTree(2, 25, 50)}
	for i := range blocks {
		idx.tree.Insert(&model.GridBlockSpatial{Block: &blocks[i]})
	}
	return idx
}

func (idx *Index) Size() int {
	return idx.tree.Size()
}

// BlockAt returns the block containing p. On a shared edge the block that
// comes first in row-major order wins.
func (idx *Index) BlockAt(p model.LatLng) (*model.GridBlock, bool) {
	const searchSize = 1e-9
	rect, _ := rtreego.NewRect(rtreego.Point{p.Lng, p.Lat}, []float64{searchSize, searchSize})

	var hits []*model.GridBlock
	for _, item := range idx.tree.SearchIntersect(rect) {
		b := item.(*model.GridBlockSpatial).Block
		if b.Bounds().Contains(p) {
			hits = append(hits, b)
		}
	}
	if len(hits) == 0 {
		return nil, false
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Row != hits[j].Row {
			return hits[i].Row < hits[j].Row
		}
		return hits[i].Col < hits[j].Col
	})
	return hits[0], true
}
