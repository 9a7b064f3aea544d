package config

import "time"

const (
	// RedisTimeout bounds every single cache round trip.
	RedisTimeout = 5 * time.Second

	// ShutdownFlushTimeout bounds the final dirty-block flush on exit.
	ShutdownFlushTimeout = 15 * time.Second
)

func (c Config) OverpassRetryDelayDuration() time.Duration {
	return time.Duration(c.OverpassRetryDelay) * time.Millisecond
}

func (c Config) OverpassTimeout() time.Duration {
	return time.Duration(c.OverpassTimeoutSec) * time.Second
}

func (c Config) GeocodeInterval() time.Duration {
	return time.Duration(c.GeocodeIntervalMs) * time.Millisecond
}

func (c Config) GeocodeCacheTTL() time.Duration {
	return time.Duration(c.GeocodeCacheTTLHours) * time.Hour
}

// PersistInterval is how often dirty grid blocks are flushed to Postgres.
func (c Config) PersistInterval() time.Duration {
	return time.Duration(c.PersistIntervalSec) * time.Second
}
