package geocoding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache is the subset of *redis.Client used for address caching.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached stores successful lookups in Redis, keyed by the coordinate rounded
// to six decimals (~10cm). Cache errors never fail a lookup.
type Cached struct {
	next  Geocoder
	cache Cache
	ttl   time.Duration
	log   *logrus.Entry
}

func NewCached(next Geocoder, cache Cache, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logrus.WithField("component", "geocode-cache"),
	}
}

func CacheKey(lat, lng float64) string {
	return fmt.Sprintf("geocode:%.6f,%.6f", lat, lng)
}

func (c *Cached) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := CacheKey(lat, lng)

	addr, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil && addr != "":
		return addr, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.WithError(err).Warnf("Cache read failed for %s", key)
	}

	addr, err = c.next.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, addr, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warnf("Cache write failed for %s", key)
	}
	return addr, nil
}
