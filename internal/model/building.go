package model

import "fmt"

type BuildingType string

const (
	BuildingTypeReal      BuildingType = "real"
	BuildingTypeSimulated BuildingType = "simulated"
)

const BuildingStatusNotVisited = "not-visited"

// BuildingInfo is a detected or inferred building. Type is the only field that
// tells real and simulated records apart, so it is always serialized.
type BuildingInfo struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Lat            float64      `json:"lat"`
	Lng            float64      `json:"lng"`
	Address        string       `json:"address"`
	BuildingNumber int          `json:"buildingNumber"`
	Status         string       `json:"status"`
	Type           BuildingType `json:"type"`
	Coordinates    *[2]float64  `json:"coordinates,omitempty"` // [lng, lat]
}

func RealBuildingID(osmID int64) string {
	return fmt.Sprintf("real-%d", osmID)
}

// SimulatedBuildingID is unique per Fill call through batch, so concurrent
// runs in the same millisecond do not collide.
func SimulatedBuildingID(timestampMs int64, batch string, index int) string {
	return fmt.Sprintf("sim-%d-%s-%d", timestampMs, batch, index)
}

// FallbackAddress labels a building whose reverse geocode failed.
func FallbackAddress(lat, lng float64) string {
	return fmt.Sprintf("Building at %.6f, %.6f", lat, lng)
}

// StreetInfo aggregates the buildings of one street inside a block.
type StreetInfo struct {
	Name            string `json:"name"`
	TotalBuildings  int    `json:"totalBuildings"`
	BuildingNumbers []int  `json:"buildingNumbers"`
}
