package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/osm"
	"knockwise/internal/service/enrichment"
	"knockwise/internal/service/simulation"
	"knockwise/internal/util"
)

var ErrInvalidPolygon = errors.New("detection: polygon needs at least 3 vertices")

type Enricher interface {
	Enrich(ctx context.Context, ring []model.LatLng, bbox model.BoundingBox) (*enrichment.Result, error)
}

// RunStore persists finished runs. Optional.
type RunStore interface {
	SaveDetectionRun(ctx context.Context, run *model.DetectionRunPG) error
}

type Config struct {
	AreaPerBuilding float64
	// DegradeOnQueryFailure continues with zero real buildings when the
	// building query fails, instead of returning the error.
	DegradeOnQueryFailure bool
}

// Result is the building list for territory creation. Buildings holds the
// real buildings first, in query order, followed by the simulated ones.
type Result struct {
	RunID          string               `json:"runId"`
	BoundaryName   string               `json:"boundaryName,omitempty"`
	Buildings      []model.BuildingInfo `json:"buildings"`
	Streets        []model.StreetInfo   `json:"streets"`
	RealCount      int                  `json:"realCount"`
	SimulatedCount int                  `json:"simulatedCount"`
	TargetCount    int                  `json:"targetCount"`
	AreaM2         float64              `json:"areaM2"`
	Dropped        int                  `json:"dropped"`
	QueryFailed    bool                 `json:"queryFailed"`
	SimulationCap  bool                 `json:"simulationCapped"`
}

type Detector struct {
	enricher  Enricher
	simulator *simulation.Simulator
	store     RunStore
	cfg       Config
	log       *logrus.Entry
}

func NewDetector(enricher Enricher, simulator *simulation.Simulator, store RunStore, cfg Config) *Detector {
	if cfg.AreaPerBuilding <= 0 {
		cfg.AreaPerBuilding = simulation.DefaultAreaPerBuilding
	}
	return &Detector{
		enricher:  enricher,
		simulator: simulator,
		store:     store,
		cfg:       cfg,
		log:       logrus.WithField("component", "detection"),
	}
}

// Detect finds the real buildings inside ring and tops them up with simulated
// ones to the density implied by the polygon area. Each call is a fresh run.
func (d *Detector) Detect(ctx context.Context, name string, ring []model.LatLng) (*Result, error) {
	start := time.Now()
	if len(ring) < 3 {
		return nil, ErrInvalidPolygon
	}
	bbox, err := geometry.BoundingBoxOf(ring)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:        util.PrefixedID("run"),
		BoundaryName: name,
		AreaM2:       geometry.PolygonArea(ring),
		Streets:      []model.StreetInfo{},
	}
	res.TargetCount = simulation.TargetCount(res.AreaM2, d.cfg.AreaPerBuilding)
	d.log.Printf("Step 1: detecting buildings for %q (%.0f m², target %d)", name, res.AreaM2, res.TargetCount)

	var real []model.BuildingInfo
	enriched, err := d.enricher.Enrich(ctx, ring, bbox)
	switch {
	case err == nil:
		real = enriched.Buildings
		res.Streets = enriched.Streets
		res.Dropped = enriched.Dropped
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, osm.ErrQueryFailed) && d.cfg.DegradeOnQueryFailure:
		d.log.WithError(err).Warn("Building query failed, continuing with zero real buildings")
		res.QueryFailed = true
	default:
		return nil, fmt.Errorf("detecting buildings: %w", err)
	}

	d.log.Printf("Step 2: filling gaps (%d real of %d target)", len(real), res.TargetCount)
	fill := d.simulator.Fill(ring, bbox, res.TargetCount, len(real))

	res.Buildings = make([]model.BuildingInfo, 0, len(real)+len(fill.Buildings))
	res.Buildings = append(res.Buildings, real...)
	res.Buildings = append(res.Buildings, fill.Buildings...)
	res.RealCount = len(real)
	res.SimulatedCount = len(fill.Buildings)
	res.SimulationCap = fill.Capped

	if d.store != nil {
		if err := d.store.SaveDetectionRun(ctx, res.toPG()); err != nil {
			d.log.WithError(err).Warnf("Failed to persist run %s", res.RunID)
		}
	}

	d.log.Printf("Detection %s done in %v: %d real, %d simulated", res.RunID, time.Since(start), res.RealCount, res.SimulatedCount)
	return res, nil
}

func (r *Result) toPG() *model.DetectionRunPG {
	return &model.DetectionRunPG{
		ID:             r.RunID,
		BoundaryName:   r.BoundaryName,
		AreaM2:         r.AreaM2,
		TargetCount:    r.TargetCount,
		RealCount:      r.RealCount,
		SimulatedCount: r.SimulatedCount,
		Dropped:        r.Dropped,
		QueryFailed:    r.QueryFailed,
		Buildings:      r.Buildings,
	}
}
