package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"knockwise/internal/api"
	routes "knockwise/internal/api/handlers"
	"knockwise/internal/config"
	"knockwise/internal/geocoding"
	"knockwise/internal/osm"
	"knockwise/internal/postgres"
	"knockwise/internal/redis"
	"knockwise/internal/service/boundary"
	"knockwise/internal/service/detection"
	"knockwise/internal/service/enrichment"
	"knockwise/internal/service/loader"
	"knockwise/internal/service/simulation"
	"knockwise/internal/service/storage"
	"knockwise/internal/worker"
)

func main() {
	pbfPath := flag.String("pbf", "", "serve buildings from this .osm.pbf extract instead of Overpass")
	flag.Parse()

	setupLogging()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.NewGridStore()
	repo, cache := initializeDatabaseAndCache(cfg)

	var persister *worker.Persister
	if repo != nil {
		persister = worker.NewPersister(store, repo)
		if _, err := persister.Restore(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to restore grids, starting empty")
		}
	}

	svc := initializeServices(ctx, cfg, store, repo, cache, *pbfPath)
	svc.Persistence = persister != nil

	workersDone := worker.StartAllWorkers(ctx, persister, cfg.PersistInterval(), config.ShutdownFlushTimeout)
	go func() {
		<-ctx.Done()
		logrus.Println("Shutdown signal received, flushing and closing connections...")
		<-workersDone
		closeConnections()
		os.Exit(0)
	}()

	reportMemoryStats()

	runAPIServer(cfg, svc)
}

func setupLogging() {
	// Set up logging to file and terminal
	logFile, err := os.OpenFile("knockwise.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
	logrus.SetOutput(multiWriter)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// initializeDatabaseAndCache connects whatever is configured. Both stores are
// optional; the service runs in memory without them.
func initializeDatabaseAndCache(cfg config.Config) (*postgres.GridRepository, geocoding.Cache) {
	var repo *postgres.GridRepository
	if cfg.DBUrl != "" {
		db, err := postgres.Init(cfg.DBUrl)
		if err != nil {
			logrus.WithError(err).Warn("PostgreSQL unavailable, persistence disabled")
		} else {
			repo = postgres.NewGridRepository(db)
		}
	}

	var cache geocoding.Cache
	if cfg.RedisUrl != "" {
		client, err := redis.Init(cfg.RedisUrl)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, geocode cache disabled")
		} else {
			cache = client
		}
	}
	return repo, cache
}

func initializeServices(ctx context.Context, cfg config.Config, store *storage.GridStore, repo *postgres.GridRepository, cache geocoding.Cache, pbfPath string) *routes.Services {
	nominatim := geocoding.NewNominatimClient(cfg.NominatimURL)

	var geocoder geocoding.Geocoder = nominatim
	if cfg.Geocoder == "google" {
		geocoder = geocoding.NewGoogleClient(cfg.GoogleMapsAPIKey)
	}
	geocoder = geocoding.NewThrottled(geocoder, cfg.GeocodeInterval())
	if cache != nil {
		geocoder = geocoding.NewCached(geocoder, cache, cfg.GeocodeCacheTTL())
	}

	overpass := osm.NewClient(osm.ClientConfig{
		Endpoint:    cfg.OverpassURL,
		MaxAttempts: cfg.OverpassMaxAttempts,
		RetryDelay:  cfg.OverpassRetryDelayDuration(),
		TimeoutSec:  cfg.OverpassTimeoutSec,
	})

	var buildings enrichment.BuildingSource = overpass
	if pbfPath != "" {
		src, err := osm.LoadPBF(ctx, pbfPath, nil)
		if err != nil {
			logrus.Fatalf("Failed to load PBF extract: %v", err)
		}
		buildings = src
	}

	enricher := enrichment.NewEnricher(buildings, overpass, geocoder, enrichment.Options{})
	simulator := simulation.NewSimulator(cfg.SimulationMaxAttempts)

	var runs detection.RunStore
	if repo != nil {
		runs = repo
	}
	detector := detection.NewDetector(enricher, simulator, runs, detection.Config{
		AreaPerBuilding:       cfg.AreaPerBuildingM2,
		DegradeOnQueryFailure: true,
	})

	return &routes.Services{
		Store:       store,
		Loader:      loader.NewLoader(enricher),
		Detector:    detector,
		Resolver:    boundary.NewResolver(nominatim, boundary.DefaultFallbackRadiusMeters),
		CellSizeDeg: cfg.GridCellSizeDeg,
		MaxBlocks:   cfg.GridMaxBlocks,
	}
}

func runAPIServer(cfg config.Config, svc *routes.Services) {
	// Initialize Gin router
	r := gin.Default()

	api.SetupRouter(r, svc)

	// Start the server
	if err := r.Run(cfg.Port); err != nil {
		logrus.Fatalf("API server stopped: %v", err)
	}
}

func reportMemoryStats() {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			logrus.Printf("Alloc = %v MiB, TotalAlloc = %v MiB, Sys = %v MiB, NumGC = %v",
				m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024, m.NumGC)
		}
	}()
}

func closeConnections() {
	if err := postgres.Close(); err != nil {
		logrus.Printf("Error closing PostgreSQL connection: %v", err)
	}

	if err := redis.Close(); err != nil {
		logrus.Printf("Error closing Redis connection: %v", err)
	}

	logrus.Println("Connections closed")
}
