// Command import-history loads OpenSky flight-log CSV files and the OpenSky
// aircraft database into the SQLite history store.
//
//	import-history [-config path] [-db path] [-aircraft aircraftDatabase.csv] flights-*.csv[.gz] ...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/yegors/skyboard/internal/config"
	"github.com/yegors/skyboard/internal/storage/sqlite"
	"github.com/yegors/skyboard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	dbPath := flag.String("db", "", "History database to write (default: data.history_db_path)")
	aircraftPath := flag.String("aircraft", "", "OpenSky aircraft database CSV (default: data.aircraft_db_csv)")
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

	if *dbPath == "" {
		*dbPath = cfg.Data.HistoryDBPath
	}
	if *aircraftPath == "" {
		*aircraftPath = cfg.Data.AircraftDBCSV
	}
	if *aircraftPath == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to import: pass flight-log CSV files and/or -aircraft")
		os.Exit(2)
	}

	storage, err := sqlite.NewHistoryStorage(*dbPath, log)
	if err != nil {
		log.Error("Failed to open history database", logger.Error(err))
		os.Exit(1)
	}
	defer storage.Close()

	ctx := context.Background()

	if *aircraftPath != "" {
		if err := importFile(ctx, *aircraftPath, storage.ImportAircraftDB, log); err != nil {
			log.Error("Aircraft database import failed", logger.Error(err))
			os.Exit(1)
		}
	}

	for _, path := range flag.Args() {
		if err := importFile(ctx, path, storage.ImportFlightLog, log); err != nil {
			log.Error("Flight log import failed", logger.Error(err))
			os.Exit(1)
		}
	}
}

// importFile feeds one CSV, gzip-compressed when it ends in .gz, to an importer
func importFile(ctx context.Context, path string, importer func(context.Context, io.Reader) (int, error), log *logger.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	start := time.Now()
	n, err := importer(ctx, r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	log.Info("Imported file",
		logger.String("path", path),
		logger.Int("rows", n),
		logger.Duration("took", time.Since(start)))
	return nil
}
