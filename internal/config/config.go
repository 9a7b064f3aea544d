package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	DBUrl    string `mapstructure:"DB_URL"`
	RedisUrl string `mapstructure:"REDIS_URL"`

	OverpassURL         string `mapstructure:"OVERPASS_URL"`
	OverpassTimeoutSec  int    `mapstructure:"OVERPASS_TIMEOUT_SEC"`
	OverpassMaxAttempts int    `mapstructure:"OVERPASS_MAX_ATTEMPTS"`
	OverpassRetryDelay  int    `mapstructure:"OVERPASS_RETRY_DELAY_MS"`

	Geocoder             string `mapstructure:"GEOCODER"`
	GoogleMapsAPIKey     string `mapstructure:"GOOGLE_MAPS_API_KEY"`
	NominatimURL         string `mapstructure:"NOMINATIM_URL"`
	GeocodeIntervalMs    int    `mapstructure:"GEOCODE_INTERVAL_MS"`
	GeocodeCacheTTLHours int    `mapstructure:"GEOCODE_CACHE_TTL_HOURS"`

	GridCellSizeDeg float64 `mapstructure:"GRID_CELL_SIZE_DEG"`
	GridMaxBlocks   int     `mapstructure:"GRID_MAX_BLOCKS"`

	AreaPerBuildingM2     float64 `mapstructure:"AREA_PER_BUILDING_M2"`
	SimulationMaxAttempts int     `mapstructure:"SIMULATION_MAX_ATTEMPTS"`

	PersistIntervalSec int `mapstructure:"PERSIST_INTERVAL_SEC"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", ":8080")
	v.SetDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter")
	v.SetDefault("OVERPASS_TIMEOUT_SEC", 25)
	v.SetDefault("OVERPASS_MAX_ATTEMPTS", 3)
	v.SetDefault("OVERPASS_RETRY_DELAY_MS", 2000)
	v.SetDefault("GEOCODER", "nominatim")
	v.SetDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODE_INTERVAL_MS", 100)
	v.SetDefault("GEOCODE_CACHE_TTL_HOURS", 720)
	v.SetDefault("GRID_CELL_SIZE_DEG", 0.005)
	v.SetDefault("GRID_MAX_BLOCKS", 2500)
	v.SetDefault("AREA_PER_BUILDING_M2", 400.0)
	v.SetDefault("SIMULATION_MAX_ATTEMPTS", 10000)
	v.SetDefault("PERSIST_INTERVAL_SEC", 30)
}

func LoadConfig() (c Config, err error) {
	// Get environment type from ENV variable or use development as default
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf(".env.%s", env))
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// Environment variables take precedence over config file
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Continue even if file is not found
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	// AutomaticEnv only applies to keys viper already knows about, so every
	// field must have a default before Unmarshal picks up the environment.
	if err = v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate reports settings that would make the pipeline unusable.
func (c Config) Validate() error {
	switch strings.ToLower(c.Geocoder) {
	case "nominatim":
		if c.NominatimURL == "" {
			return errors.New("NOMINATIM_URL is required for the nominatim geocoder")
		}
	case "google":
		if c.GoogleMapsAPIKey == "" {
			return errors.New("GOOGLE_MAPS_API_KEY is required for the google geocoder")
		}
	default:
		return fmt.Errorf("unknown GEOCODER %q", c.Geocoder)
	}
	if c.OverpassMaxAttempts < 1 {
		return fmt.Errorf("OVERPASS_MAX_ATTEMPTS must be >= 1, got %d", c.OverpassMaxAttempts)
	}
	if c.GridCellSizeDeg <= 0 {
		return fmt.Errorf("GRID_CELL_SIZE_DEG must be positive, got %v", c.GridCellSizeDeg)
	}
	if c.AreaPerBuildingM2 <= 0 {
		return fmt.Errorf("AREA_PER_BUILDING_M2 must be positive, got %v", c.AreaPerBuildingM2)
	}
	if c.SimulationMaxAttempts < 1 {
		return fmt.Errorf("SIMULATION_MAX_ATTEMPTS must be >= 1, got %d", c.SimulationMaxAttempts)
	}
	return nil
}
