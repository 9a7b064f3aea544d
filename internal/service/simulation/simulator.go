package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
)

const (
	DefaultAreaPerBuilding = 400.0 // m² per expected building
	DefaultMaxAttempts     = 10000
)

// TargetCount is the expected number of buildings for an area in m².
func TargetCount(areaM2, areaPerBuilding float64) int {
	if areaPerBuilding <= 0 || !(areaM2 > 0) {
		return 0
	}
	return int(math.Floor(areaM2 / areaPerBuilding))
}

// Simulator places synthetic buildings inside a polygon by rejection
// sampling. A Fill call gives up once MaxAttempts draws in a row missed the
// polygon, so the budget grows with the number of buildings requested. Safe
// for concurrent use.
type Simulator struct {
	MaxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand // seeds one source per Fill call; guarded by mu

	now func() time.Time
	log *logrus.Entry
}

func NewSimulator(maxAttempts int) *Simulator {
	return NewSimulatorWith(maxAttempts, rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewSimulatorWith injects the random source and clock.
func NewSimulatorWith(maxAttempts int, rnd *rand.Rand, now func() time.Time) *Simulator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Simulator{
		MaxAttempts: maxAttempts,
		rnd:         rnd,
		now:         now,
		log:         logrus.WithField("component", "simulation"),
	}
}

// FillResult reports the simulated buildings and whether the attempt cap cut
// sampling short.
type FillResult struct {
	Buildings []model.BuildingInfo
	Requested int
	Attempts  int
	Capped    bool
}

func (s *Simulator) callSource() (*rand.Rand, string) {
	s.mu.Lock()
	seed := s.rnd.Int63()
	s.mu.Unlock()
	rnd := rand.New(rand.NewSource(seed))
	return rnd, fmt.Sprintf("%08x", rnd.Uint32())
}

// Fill generates max(0, target-real) simulated buildings inside ring.
func (s *Simulator) Fill(ring []model.LatLng, bbox model.BoundingBox, target, real int) FillResult {
	need := target - real
	if need <= 0 {
		return FillResult{Buildings: []model.BuildingInfo{}}
	}

	res := FillResult{Requested: need, Buildings: make([]model.BuildingInfo, 0, need)}
	if bbox.IsDegenerate() {
		res.Capped = true
		s.log.Warn("Degenerate bounding box, no simulated buildings placed")
		return res
	}

	rnd, batch := s.callSource()
	stamp := s.now().UnixMilli()
	latSpan, lngSpan := bbox.North-bbox.South, bbox.East-bbox.West
	misses := 0
	for len(res.Buildings) < need {
		if misses >= s.MaxAttempts {
			res.Capped = true
			break
		}
		res.Attempts++

		p := model.LatLng{
			Lat: bbox.South + rnd.Float64()*latSpan,
			Lng: bbox.West + rnd.Float64()*lngSpan,
		}
		if !geometry.PointInPolygon(p, ring) {
			misses++
			continue
		}
		misses = 0

		i := len(res.Buildings)
		res.Buildings = append(res.Buildings, model.BuildingInfo{
			ID:          model.SimulatedBuildingID(stamp, batch, i),
			Name:        fmt.Sprintf("Simulated Building %d", i+1),
			Lat:         p.Lat,
			Lng:         p.Lng,
			Address:     model.FallbackAddress(p.Lat, p.Lng),
			Status:      model.BuildingStatusNotVisited,
			Type:        model.BuildingTypeSimulated,
			Coordinates: &[2]float64{p.Lng, p.Lat},
		})
	}

	if res.Capped {
		s.log.Warnf("Placed %d/%d simulated buildings before %d consecutive misses", len(res.Buildings), need, s.MaxAttempts)
	} else {
		s.log.Printf("Placed %d simulated buildings in %d attempts", need, res.Attempts)
	}
	return res
}
