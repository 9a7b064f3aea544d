package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const GoogleBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleClient wraps the Google Maps Geocoding API.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleClient(apiKey string) *GoogleClient {
	return &GoogleClient{
		apiKey:  apiKey,
		baseURL: GoogleBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithBaseURL points the client at another endpoint.
func (c *GoogleClient) WithBaseURL(u string) *GoogleClient {
	c.baseURL = u
	return c
}

type googleResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (c *GoogleClient) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(lat, 'f', 7, 64)+","+strconv.FormatFloat(lng, 'f', 7, 64))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeocodeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: google returned HTTP %d", ErrGeocodeFailed, resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrGeocodeFailed, err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("%w: status=%s %s", ErrGeocodeFailed, body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 || body.Results[0].FormattedAddress == "" {
		return "", ErrNotFound
	}
	return body.Results[0].FormattedAddress, nil
}
