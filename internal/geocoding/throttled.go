package geocoding

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttled runs calls to next one at a time and spaces their starts by at
// least interval. Waiting honours ctx, so a cancelled batch stops before its
// next request.
type Throttled struct {
	next    Geocoder
	limiter *rate.Limiter
	mu      sync.Mutex
}

func NewThrottled(next Geocoder, interval time.Duration) *Throttled {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *Throttled) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.ReverseGeocode(ctx, lat, lng)
}
