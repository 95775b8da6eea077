// Command fetch-states downloads the current OpenSky state vectors once and
// stores them as the snapshot the dashboard server loads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/opensky"
	"github.com/yegors/skyboard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	outPath := flag.String("out", "", "Snapshot file to write (default: data.snapshot_path)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *outPath == "" {
		*outPath = cfg.Data.SnapshotPath
	}

	if err := run(cfg, *outPath, log); err != nil {
		log.Error("Fetch failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, outPath string, log *logger.Logger) error {
	bbox, err := fetchBBox(cfg)
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.OpenSky.TimeoutSecs) * time.Second
	client, err := opensky.NewClient(opensky.Options{
		BaseURL:         cfg.OpenSky.BaseURL,
		TokenURL:        cfg.OpenSky.TokenURL,
		CredentialsPath: cfg.OpenSky.CredentialsPath,
		Timeout:         timeout,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create OpenSky client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	snap, err := client.FetchStates(ctx, bbox)
	if err != nil {
		return err
	}

	if err := opensky.SaveSnapshotFile(outPath, snap); err != nil {
		return err
	}

	log.Info("Snapshot written",
		logger.String("path", outPath),
		logger.Int("states", len(snap.States)),
		logger.Time("time", time.Unix(snap.Time, 0).UTC()))
	return nil
}

// fetchBBox picks the configured box, else a box around the station, else
// the whole world
func fetchBBox(cfg *config.Config) (opensky.BBox, error) {
	o := cfg.OpenSky
	bbox := opensky.BBox{LaMin: o.BBoxLamin, LoMin: o.BBoxLomin, LaMax: o.BBoxLamax, LoMax: o.BBoxLomax}
	if !bbox.IsZero() {
		return bbox, nil
	}
	if cfg.Station.AirportCode != "" && o.SearchRadiusNM > 0 {
		return opensky.BBoxAround(cfg.Station.Latitude, cfg.Station.Longitude, o.SearchRadiusNM)
	}
	return opensky.BBox{}, nil
}
