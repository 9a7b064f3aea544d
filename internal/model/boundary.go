package model

// BoundarySource records where a community polygon came from.
type BoundarySource string

const (
	BoundarySourceGoogle    BoundarySource = "google"
	BoundarySourceNominatim BoundarySource = "nominatim"
	BoundarySourceFallback  BoundarySource = "fallback"
)

// CommunityBoundary is the area a grid is generated over. It is replaced
// wholesale, never edited.
type CommunityBoundary struct {
	Name        string         `json:"name"`
	Center      LatLng         `json:"center"`
	Bounds      BoundingBox    `json:"bounds"`
	Coordinates []LatLng       `json:"coordinates"`
	Source      BoundarySource `json:"source"`
}
