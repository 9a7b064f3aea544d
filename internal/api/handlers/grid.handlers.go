package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"knockwise/internal/model"
	"knockwise/internal/service/boundary"
	"knockwise/internal/service/grid"
	"knockwise/internal/service/storage"
	"knockwise/internal/util"
)

type createGridRequest struct {
	Boundary       model.CommunityBoundary `json:"boundary"`
	CellSizeDeg    float64                 `json:"cellSizeDeg"`
	CellSizeMeters float64                 `json:"cellSizeMeters"`
	Clip           bool                    `json:"clip"`
}

type gridResponse struct {
	GridID string            `json:"gridId"`
	Grid   storage.Grid      `json:"grid"`
	Blocks []model.GridBlock `json:"blocks"`
}

type loadResponse struct {
	Outcome string          `json:"outcome"`
	State   string          `json:"state"`
	Block   model.GridBlock `json:"block"`
}

// SetupGridHandlers registers grid generation and block loading
func SetupGridHandlers(router *gin.RouterGroup, svc *Services) {
	h := &gridHandlers{svc: svc, log: logrus.WithField("component", "api")}

	grids := router.Group("/grids")
	grids.POST("", h.createGrid)
	grids.GET("", h.listGrids)
	grids.GET("/:gridId", h.getGrid)
	grids.DELETE("/:gridId", h.deleteGrid)
	grids.GET("/:gridId/geojson", h.gridGeoJSON)
	grids.GET("/:gridId/blocks/at", h.blockAt)
	grids.POST("/:gridId/blocks/:blockId/load", h.loadBlock)
}

type gridHandlers struct {
	svc *Services
	log *logrus.Entry
}

func (h *gridHandlers) createGrid(c *gin.Context) {
	var req createGridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	if len(req.Boundary.Coordinates) < 3 {
		respondError(c, http.StatusBadRequest, errors.New("boundary needs at least 3 coordinates"))
		return
	}
	for _, p := range req.Boundary.Coordinates {
		if !p.Valid() {
			respondError(c, http.StatusBadRequest, fmt.Errorf("invalid coordinate %v", p))
			return
		}
	}

	cellSize := h.svc.CellSizeDeg
	switch {
	case req.CellSizeDeg > 0:
		cellSize = req.CellSizeDeg
	case req.CellSizeMeters > 0:
		cellSize = grid.CellSizeFromMeters(req.CellSizeMeters)
	}

	source := req.Boundary.Source
	if source == "" {
		source = model.BoundarySourceFallback
	}
	b, err := boundary.FromPolygon(req.Boundary.Name, req.Boundary.Coordinates, source)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	blocks, err := grid.SubdivideLimited(b.Bounds, cellSize, h.svc.MaxBlocks)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if req.Clip {
		blocks = grid.ClipToBoundary(blocks, b.Coordinates)
	}

	g := storage.Grid{
		ID:          util.PrefixedID("grid"),
		Boundary:    *b,
		CellSizeDeg: cellSize,
		CreatedAt:   time.Now(),
	}
	h.svc.Store.CreateGrid(g, blocks)
	h.log.Printf("Created grid %s for %q with %d blocks", g.ID, b.Name, len(blocks))

	g, _ = h.svc.Store.Grid(g.ID)
	c.JSON(http.StatusCreated, gridResponse{GridID: g.ID, Grid: g, Blocks: blocks})
}

func (h *gridHandlers) listGrids(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"grids": h.svc.Store.Grids()})
}

func (h *gridHandlers) getGrid(c *gin.Context) {
	id := c.Param("gridId")
	g, ok := h.svc.Store.Grid(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("grid %s not found", id))
		return
	}
	blocks, _ := h.svc.Store.Blocks(id)
	c.JSON(http.StatusOK, gridResponse{GridID: id, Grid: g, Blocks: blocks})
}

func (h *gridHandlers) deleteGrid(c *gin.Context) {
	id := c.Param("gridId")
	if !h.svc.Store.DeleteGrid(id) {
		respondError(c, http.StatusNotFound, fmt.Errorf("grid %s not found", id))
		return
	}
	h.log.Printf("Cleared grid %s", id)
	c.Status(http.StatusNoContent)
}

func (h *gridHandlers) gridGeoJSON(c *gin.Context) {
	id := c.Param("gridId")
	g, ok := h.svc.Store.Grid(id)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("grid %s not found", id))
		return
	}
	blocks, _ := h.svc.Store.Blocks(id)
	c.JSON(http.StatusOK, grid.FeatureCollection(blocks, g.Boundary.Coordinates))
}

func (h *gridHandlers) blockAt(c *gin.Context) {
	id := c.Param("gridId")
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	p := model.LatLng{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !p.Valid() {
		respondError(c, http.StatusBadRequest, errors.New("lat and lng must be valid coordinates"))
		return
	}
	if _, ok := h.svc.Store.Grid(id); !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("grid %s not found", id))
		return
	}
	b, ok := h.svc.Store.BlockAt(id, p)
	if !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("no block of grid %s contains %.6f, %.6f", id, lat, lng))
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *gridHandlers) loadBlock(c *gin.Context) {
	gridID, blockID := c.Param("gridId"), c.Param("blockId")
	if _, ok := h.svc.Store.Grid(gridID); !ok {
		respondError(c, http.StatusNotFound, fmt.Errorf("grid %s not found", gridID))
		return
	}

	update := func(id string, mutate func(b *model.GridBlock) bool) bool {
		return h.svc.Store.UpdateBlock(gridID, id, mutate)
	}
	outcome, err := h.svc.Loader.Load(c.Request.Context(), blockID, update)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	b, ok := h.svc.Store.Block(gridID, blockID)
	if !ok {
		// grid was cleared while the block was loading
		c.JSON(http.StatusGone, gin.H{"status": "error", "message": "grid was cleared", "outcome": outcome.String()})
		return
	}
	c.JSON(http.StatusOK, loadResponse{Outcome: outcome.String(), State: b.State().String(), Block: b})
}
