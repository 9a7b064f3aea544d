// Package geocoding turns coordinates into postal addresses. Providers are
// composed: a cache in front of a rate limiter in front of an HTTP client.
package geocoding

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the provider answered but had no address.
	ErrNotFound = errors.New("geocoding: no address found")
	// ErrGeocodeFailed wraps transport and provider errors.
	ErrGeocodeFailed = errors.New("geocoding: request failed")
)

// Geocoder resolves a coordinate to a formatted address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// UserAgent is sent to providers that require one (Nominatim usage policy).
const UserAgent = "knockwise/1.0 (territory planning)"
