package storage

import (
	"sort"
	"sync"
	"time"

	"knockwise/internal/model"
	"knockwise/internal/service/grid"
)

// Grid is the metadata of one generated grid.
type Grid struct {
	ID          string                  `json:"id"`
	Boundary    model.CommunityBoundary `json:"boundary"`
	CellSizeDeg float64                 `json:"cellSizeDeg"`
	BlockIDs    []string                `json:"-"`
	CreatedAt   time.Time               `json:"createdAt"`
}

type BlockKey struct {
	GridID  string
	BlockID string
}

// GridStore owns grid blocks on behalf of API callers. Blocks are stored by
// value and only changed through UpdateBlock, so readers always get a
// consistent copy.
type GridStore struct {
	grids  *MemoryStorage[string, Grid]
	blocks *MemoryStorage[BlockKey, model.GridBlock]

	mu      sync.RWMutex
	indexes map[string]*grid.Index
}

func NewGridStore() *GridStore {
	return &GridStore{
		grids:   NewMemoryStorage[string, Grid](),
		blocks:  NewMemoryStorage[BlockKey, model.GridBlock](),
		indexes: make(map[string]*grid.Index),
	}
}

// CreateGrid stores a new grid and its blocks, all marked dirty.
func (s *GridStore) CreateGrid(g Grid, blocks []model.GridBlock) {
	s.put(g, blocks, false)
}

// Restore stores a grid loaded from the database without marking it dirty.
func (s *GridStore) Restore(g Grid, blocks []model.GridBlock) {
	s.put(g, blocks, true)
}

func (s *GridStore) put(g Grid, blocks []model.GridBlock, clean bool) {
	g.BlockIDs = make([]string, 0, len(blocks))
	for _, b := range blocks {
		g.BlockIDs = append(g.BlockIDs, b.ID)
		key := BlockKey{GridID: g.ID, BlockID: b.ID}
		if clean {
			s.blocks.SetClean(key, b)
		} else {
			s.blocks.Set(key, b)
		}
	}
	if clean {
		s.grids.SetClean(g.ID, g)
	} else {
		s.grids.Set(g.ID, g)
	}

	// the index only needs geometry, which never changes after creation
	snapshot := make([]model.GridBlock, len(blocks))
	for i, b := range blocks {
		snapshot[i] = model.GridBlock{ID: b.ID, Row: b.Row, Col: b.Col, Coordinates: b.Coordinates}
	}
	s.mu.Lock()
	s.indexes[g.ID] = grid.NewIndex(snapshot)
	s.mu.Unlock()
}

func (s *GridStore) Grid(id string) (Grid, bool) {
	return s.grids.Get(id)
}

// Grids returns all grids, oldest first.
func (s *GridStore) Grids() []Grid {
	var out []Grid
	s.grids.ForEach(func(_ string, g Grid) bool {
		out = append(out, g)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Blocks returns the blocks of a grid in generation order.
func (s *GridStore) Blocks(gridID string) ([]model.GridBlock, bool) {
	g, ok := s.grids.Get(gridID)
	if !ok {
		return nil, false
	}
	out := make([]model.GridBlock, 0, len(g.BlockIDs))
	for _, id := range g.BlockIDs {
		if b, ok := s.blocks.Get(BlockKey{GridID: gridID, BlockID: id}); ok {
			out = append(out, b)
		}
	}
	return out, true
}

func (s *GridStore) Block(gridID, blockID string) (model.GridBlock, bool) {
	return s.blocks.Get(BlockKey{GridID: gridID, BlockID: blockID})
}

// UpdateBlock applies mutate to a copy of the block under the store lock and
// keeps the result when mutate returns true. It reports whether the block
// exists.
func (s *GridStore) UpdateBlock(gridID, blockID string, mutate func(b *model.GridBlock) bool) bool {
	found := false
	s.blocks.Update(BlockKey{GridID: gridID, BlockID: blockID}, func(b model.GridBlock, exists bool) (model.GridBlock, bool) {
		found = exists
		if !exists {
			return b, false
		}
		return b, mutate(&b)
	})
	return found
}

// BlockAt returns the current state of the block covering p.
func (s *GridStore) BlockAt(gridID string, p model.LatLng) (model.GridBlock, bool) {
	s.mu.RLock()
	idx, ok := s.indexes[gridID]
	s.mu.RUnlock()
	if !ok {
		return model.GridBlock{}, false
	}
	hit, ok := idx.BlockAt(p)
	if !ok {
		return model.GridBlock{}, false
	}
	return s.Block(gridID, hit.ID)
}

// DeleteGrid discards a grid with all of its blocks.
func (s *GridStore) DeleteGrid(gridID string) bool {
	g, ok := s.grids.Get(gridID)
	if !ok {
		return false
	}
	for _, id := range g.BlockIDs {
		s.blocks.Delete(BlockKey{GridID: gridID, BlockID: id})
	}
	s.grids.Delete(gridID)

	s.mu.Lock()
	delete(s.indexes, gridID)
	s.mu.Unlock()
	return true
}

// Changes is everything modified since the last acknowledged flush.
type Changes struct {
	Grids         map[string]Grid
	Blocks        map[BlockKey]model.GridBlock
	DeletedGrids  []string
	deletedBlocks []BlockKey
	takenAt       time.Time
}

func (c Changes) Empty() bool {
	return len(c.Grids) == 0 && len(c.Blocks) == 0 && len(c.DeletedGrids) == 0 && len(c.deletedBlocks) == 0
}

// PendingChanges collects dirty grids and blocks without clearing them.
func (s *GridStore) PendingChanges() Changes {
	return Changes{
		takenAt:       time.Now(),
		Grids:         s.grids.GetDirty(),
		Blocks:        s.blocks.GetDirty(),
		DeletedGrids:  s.grids.GetDeleted(),
		deletedBlocks: s.blocks.GetDeleted(),
	}
}

// Ack clears the dirty flags of a flushed change set. Entries updated after
// the set was taken stay dirty.
func (s *GridStore) Ack(c Changes) {
	gridKeys := make([]string, 0, len(c.Grids)+len(c.DeletedGrids))
	for k := range c.Grids {
		gridKeys = append(gridKeys, k)
	}
	gridKeys = append(gridKeys, c.DeletedGrids...)
	s.grids.ClearDirtyBefore(gridKeys, c.takenAt)

	blockKeys := make([]BlockKey, 0, len(c.Blocks)+len(c.deletedBlocks))
	for k := range c.Blocks {
		blockKeys = append(blockKeys, k)
	}
	blockKeys = append(blockKeys, c.deletedBlocks...)
	s.blocks.ClearDirtyBefore(blockKeys, c.takenAt)
}
