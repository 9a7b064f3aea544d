package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	routes "knockwise/internal/api/handlers"
	"knockwise/internal/geocoding"
	"knockwise/internal/model"
	"knockwise/internal/osm"
	"knockwise/internal/service/boundary"
	"knockwise/internal/service/detection"
	"knockwise/internal/service/enrichment"
	"knockwise/internal/service/loader"
	"knockwise/internal/service/simulation"
	"knockwise/internal/service/storage"
)

type stubEnricher struct {
	err error
}

func (s *stubEnricher) Enrich(ctx context.Context, ring []model.LatLng, bbox model.BoundingBox) (*enrichment.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	c := bbox.Center()
	b := model.BuildingInfo{
		ID:             model.RealBuildingID(1),
		Name:           "12 Main St",
		Lat:            c.Lat,
		Lng:            c.Lng,
		Address:        "12 Main St",
		BuildingNumber: 12,
		Status:         model.BuildingStatusNotVisited,
		Type:           model.BuildingTypeReal,
	}
	return &enrichment.Result{
		Buildings: []model.BuildingInfo{b},
		Streets:   []model.StreetInfo{{Name: "Main St", TotalBuildings: 1, BuildingNumbers: []int{12}}},
		Found:     1,
	}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, query string, polygons bool) ([]geocoding.Place, error) {
	return nil, geocoding.ErrNotFound
}

var testBox = model.BoundingBox{North: 43.65, South: 43.64, East: -79.38, West: -79.39}

func newTestRouter(enricher *stubEnricher) (*gin.Engine, *routes.Services) {
	gin.SetMode(gin.TestMode)
	sim := simulation.NewSimulatorWith(0, rand.New(rand.NewSource(7)), func() time.Time { return time.UnixMilli(1000) })
	svc := &routes.Services{
		Store:       storage.NewGridStore(),
		Loader:      loader.NewLoader(enricher),
		Detector:    detection.NewDetector(enricher, sim, nil, detection.Config{DegradeOnQueryFailure: true}),
		Resolver:    boundary.NewResolver(stubSearcher{}, 0),
		CellSizeDeg: 0.005,
		MaxBlocks:   100,
	}
	r := gin.New()
	SetupRouter(r, svc)
	return r, svc
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type gridBody struct {
	GridID string            `json:"gridId"`
	Blocks []model.GridBlock `json:"blocks"`
}

func createGrid(t *testing.T, r *gin.Engine) gridBody {
	w := do(r, http.MethodPost, "/api/grids", gin.H{
		"boundary": gin.H{"name": "Test", "coordinates": testBox.Ring()},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body gridBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})
	w := do(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGridLifecycle(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})
	g := createGrid(t, r)
	require.Len(t, g.Blocks, 4)
	assert.Equal(t, "block-r0-c0", g.Blocks[0].ID)

	w := do(r, http.MethodGet, "/api/grids/"+g.GridID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/grids/"+g.GridID+"/geojson", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"FeatureCollection"`)

	w = do(r, http.MethodGet, fmt.Sprintf("/api/grids/%s/blocks/at?lat=%f&lng=%f", g.GridID, 43.6475, -79.3875), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var at model.GridBlock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &at))
	assert.Equal(t, "block-r0-c0", at.ID)

	path := "/api/grids/" + g.GridID + "/blocks/block-r0-c0/load"
	w = do(r, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"outcome":"loaded"`)
	assert.Contains(t, w.Body.String(), `"state":"loaded"`)

	w = do(r, http.MethodPost, path, nil)
	assert.Contains(t, w.Body.String(), `"outcome":"skipped"`)

	w = do(r, http.MethodPost, "/api/grids/"+g.GridID+"/blocks/block-r9-c9/load", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/api/grids/"+g.GridID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/api/grids/"+g.GridID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadBlockQueryFailure(t *testing.T) {
	r, svc := newTestRouter(&stubEnricher{err: &osm.QueryFailedError{Attempts: 3, Err: fmt.Errorf("HTTP 504")}})
	g := createGrid(t, r)

	w := do(r, http.MethodPost, "/api/grids/"+g.GridID+"/blocks/block-r0-c1/load", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	b, ok := svc.Store.Block(g.GridID, "block-r0-c1")
	require.True(t, ok)
	assert.Equal(t, model.BlockStateUnloaded, b.State())
}

func TestCreateGridRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})

	w := do(r, http.MethodPost, "/api/grids", gin.H{"boundary": gin.H{"coordinates": []model.LatLng{{Lat: 1, Lng: 1}}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/grids", gin.H{
		"boundary":    gin.H{"coordinates": testBox.Ring()},
		"cellSizeDeg": 0.0001,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "too many blocks")
}

func TestBlockAtValidation(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})
	g := createGrid(t, r)

	w := do(r, http.MethodGet, "/api/grids/"+g.GridID+"/blocks/at?lat=abc&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/grids/"+g.GridID+"/blocks/at?lat=10&lng=10", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetection(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})
	small := model.BoundingBox{North: 43.642, South: 43.640, East: -79.388, West: -79.390}

	w := do(r, http.MethodPost, "/api/detections", gin.H{"name": "Test", "coordinates": small.Ring()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res detection.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.RealCount)
	assert.Equal(t, res.TargetCount-1, res.SimulatedCount)
	assert.Len(t, res.Buildings, res.TargetCount)
	assert.Equal(t, model.BuildingTypeReal, res.Buildings[0].Type)

	w = do(r, http.MethodPost, "/api/detections", gin.H{"coordinates": []model.LatLng{{Lat: 1, Lng: 1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveBoundaryFallback(t *testing.T) {
	r, _ := newTestRouter(&stubEnricher{})

	w := do(r, http.MethodPost, "/api/boundaries/resolve", gin.H{"name": "Nowhere", "center": gin.H{"lat": 43.6, "lng": -79.4}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"fallback"`)

	w = do(r, http.MethodPost, "/api/boundaries/resolve", gin.H{"name": "Nowhere"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/boundaries/resolve", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
