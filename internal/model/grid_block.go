package model

import (
	"time"

	"github.com/dhconnelly/rtreego"
	"gorm.io/gorm"
)

type BlockState int

const (
	BlockStateUnloaded BlockState = iota
	BlockStateLoading
	BlockStateLoadedWithData
	BlockStateLoadedEmpty
)

func (s BlockState) String() string {
	switch s {
	case BlockStateLoading:
		return "loading"
	case BlockStateLoadedWithData:
		return "loaded"
	case BlockStateLoadedEmpty:
		return "empty"
	default:
		return "unloaded"
	}
}

// GridBlock is one rectangular cell of a grid. Area is in km².
type GridBlock struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Row          int            `json:"row"`
	Col          int            `json:"col"`
	Coordinates  []LatLng       `json:"coordinates"`
	Center       LatLng         `json:"center"`
	Area         float64        `json:"area"`
	IsLoading    bool           `json:"isLoading"`
	IsDataLoaded bool           `json:"isDataLoaded"`
	Streets      []StreetInfo   `json:"streets,omitempty"`
	Buildings    []BuildingInfo `json:"buildings,omitempty"`
}

func (b *GridBlock) State() BlockState {
	switch {
	case b.IsLoading:
		return BlockStateLoading
	case b.IsDataLoaded && len(b.Buildings) > 0:
		return BlockStateLoadedWithData
	case b.IsDataLoaded:
		return BlockStateLoadedEmpty
	default:
		return BlockStateUnloaded
	}
}

// Bounds returns the block rectangle derived from its ring.
func (b *GridBlock) Bounds() BoundingBox {
	return BoundingBoxFromBound(OrbRing(b.Coordinates).Bound())
}

// GridBlockSpatial wraps a block for R-tree indexing.
type GridBlockSpatial struct {
	Block *GridBlock
}

// Bounds implements the rtreego.Spatial interface
func (s *GridBlockSpatial) Bounds() rtreego.Rect {
	bb := s.Block.Bounds()
	rect, _ := rtreego.NewRect(
		rtreego.Point{bb.West, bb.South},
		[]float64{bb.East - bb.West, bb.North - bb.South},
	)
	return rect
}

// GridPG model for PostgreSQL storage
type GridPG struct {
	ID          string         `gorm:"primaryKey;size:64"`
	Name        string         `gorm:"size:255;not null"`
	Source      string         `gorm:"size:32"`
	CellSizeDeg float64        `gorm:"not null"`
	Bounds      BoundingBox    `gorm:"type:jsonb;serializer:json"`
	Boundary    []LatLng       `gorm:"type:jsonb;serializer:json"`
	Blocks      []GridBlockPG  `gorm:"foreignKey:GridID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (GridPG) TableName() string {
	return "grids"
}

// GridBlockPG model for PostgreSQL storage
type GridBlockPG struct {
	GridID       string         `gorm:"primaryKey;size:64"`
	BlockID      string         `gorm:"primaryKey;size:64"`
	Name         string         `gorm:"size:255;not null"`
	Row          int            `gorm:"column:grid_row;not null"`
	Col          int            `gorm:"column:grid_col;not null"`
	Coordinates  []LatLng       `gorm:"type:jsonb;serializer:json"`
	Center       LatLng         `gorm:"type:jsonb;serializer:json"`
	AreaKm2      float64        `gorm:"not null"`
	IsDataLoaded bool           `gorm:"not null;default:false"`
	Streets      []StreetInfo   `gorm:"type:jsonb;serializer:json"`
	Buildings    []BuildingInfo `gorm:"type:jsonb;serializer:json"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (GridBlockPG) TableName() string {
	return "grid_blocks"
}

// GridBlockToPG converts a block for persistence. Loading flags are transient
// and not stored.
func GridBlockToPG(gridID string, b *GridBlock) *GridBlockPG {
	return &GridBlockPG{
		GridID:       gridID,
		BlockID:      b.ID,
		Name:         b.Name,
		Row:          b.Row,
		Col:          b.Col,
		Coordinates:  b.Coordinates,
		Center:       b.Center,
		AreaKm2:      b.Area,
		IsDataLoaded: b.IsDataLoaded,
		Streets:      b.Streets,
		Buildings:    b.Buildings,
	}
}

func GridBlockFromPG(pg *GridBlockPG) *GridBlock {
	return &GridBlock{
		ID:           pg.BlockID,
		Name:         pg.Name,
		Row:          pg.Row,
		Col:          pg.Col,
		Coordinates:  pg.Coordinates,
		Center:       pg.Center,
		Area:         pg.AreaKm2,
		IsDataLoaded: pg.IsDataLoaded,
		Streets:      pg.Streets,
		Buildings:    pg.Buildings,
	}
}
