package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const NominatimBaseURL = "https://nominatim.openstreetmap.org"

// NominatimClient talks to a Nominatim instance for reverse geocoding and
// place search.
type NominatimClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewNominatimClient(baseURL string) *NominatimClient {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}
	return &NominatimClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimAddress struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
}

type nominatimReverse struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

// Place is a Nominatim search hit. GeoJSON is the raw geometry when the
// search asked for polygons.
type Place struct {
	DisplayName string          `json:"display_name"`
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	BoundingBox []string        `json:"boundingbox"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

func (p Place) LatLng() (float64, float64, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGeocodeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: nominatim returned HTTP %d", ErrGeocodeFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrGeocodeFailed, err)
	}
	return nil
}

// ReverseGeocode returns "<number> <road>, <city>" when Nominatim has those
// parts and the display name otherwise.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 7, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', 7, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var body nominatimReverse
	if err := c.get(ctx, "/reverse", q, &body); err != nil {
		return "", err
	}
	if body.Error != "" {
		return "", ErrNotFound
	}
	if addr := formatAddress(body.Address); addr != "" {
		return addr, nil
	}
	if body.DisplayName == "" {
		return "", ErrNotFound
	}
	return body.DisplayName, nil
}

func formatAddress(a nominatimAddress) string {
	if a.Road == "" {
		return ""
	}
	street := a.Road
	if a.HouseNumber != "" {
		street = a.HouseNumber + " " + a.Road
	}
	parts := []string{street}
	for _, locality := range []string{a.City, a.Town, a.Village} {
		if locality != "" {
			parts = append(parts, locality)
			break
		}
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	return strings.Join(parts, ", ")
}

// Search looks up places by free-form name. With polygons set, each place
// carries its boundary as GeoJSON.
func (c *NominatimClient) Search(ctx context.Context, query string, polygons bool) ([]Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", query)
	q.Set("limit", "5")
	if polygons {
		q.Set("polygon_geojson", "1")
		q.Set("polygon_threshold", "0.0001")
	}

	var places []Place
	if err := c.get(ctx, "/search", q, &places); err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNotFound
	}
	return places, nil
}
