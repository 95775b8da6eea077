package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/skyboard/internal/api"
	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/dashboard"
	"github.com/yegors/skyboard/internal/geo"
	"github.com/yegors/skyboard/internal/opensky"
	"github.com/yegors/skyboard/internal/palette"
	"github.com/yegors/skyboard/internal/storage/sqlite"
	"github.com/yegors/skyboard/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skyboard server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot and history are both optional; the views that need a missing
	// source answer 503
	snapshot := loadSnapshot(cfg.Data.SnapshotPath, log)

	var history dashboard.HistoryStore
	historyStorage := openHistory(cfg.Data.HistoryDBPath, log)
	if historyStorage != nil {
		defer historyStorage.Close()
		history = historyStorage
	}

	colors, err := palette.New(cfg.Arrivals.Colors, cfg.Arrivals.ColorSeed)
	if err != nil {
		log.Error("Invalid colour mode", logger.Error(err))
		os.Exit(1)
	}

	service := dashboard.NewService(serviceOptions(cfg), colors, log)
	if err := service.Load(ctx, snapshot, history); err != nil {
		log.Error("Failed to load dashboard data", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(service, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal or a failed listener
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}

func loadSnapshot(path string, log *logger.Logger) *opensky.Snapshot {
	snap, err := opensky.LoadSnapshotFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("No OpenSky snapshot, run fetch-states to create one", logger.String("path", path))
		} else {
			log.Error("Failed to load OpenSky snapshot", logger.String("path", path), logger.Error(err))
		}
		return nil
	}
	return snap
}

func openHistory(path string, log *logger.Logger) *sqlite.HistoryStorage {
	if _, err := os.Stat(path); err != nil {
		log.Warn("No history database, run import-history to create one", logger.String("path", path))
		return nil
	}

	storage, err := sqlite.NewHistoryStorage(path, log)
	if err != nil {
		log.Error("Failed to open history database", logger.String("path", path), logger.Error(err))
		return nil
	}
	return storage
}

func serviceOptions(cfg *config.Config) dashboard.Options {
	return dashboard.Options{
		ClusterThresholdKm: cfg.Airports.ClusterThresholdKm,
		IDPrefix:           cfg.Airports.IDPrefix,
		DefaultAirport:     cfg.Airports.DefaultAirport,
		MagneticVariation:  cfg.Airports.MagneticVariation,
		Arrivals: geo.ArrivalOptions{
			NearRadiusKm:   cfg.Arrivals.NearRadiusKm,
			ToleranceDeg:   cfg.Arrivals.ToleranceDeg,
			MaxTrackPoints: cfg.Arrivals.MaxTrackPoints,
		},
		Region: opensky.BBox{
			LaMin: cfg.Region.MinLat,
			LoMin: cfg.Region.MinLon,
			LaMax: cfg.Region.MaxLat,
			LoMax: cfg.Region.MaxLon,
		},
		HistorySampleStride: cfg.Data.HistorySampleStride,
		CacheSize:           cfg.Cache.Size,
		CacheTTL:            time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
	}
}
