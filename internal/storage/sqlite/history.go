package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/yegors/skyboard/pkg/logger"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches nothing
var ErrNotFound = errors.New("not found")

// HistoryStorage is a SQLite store for a day of recorded flight positions
// and the aircraft database they are joined with
type HistoryStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewHistoryStorage opens (or creates) the history database
func NewHistoryStorage(dbPath string, log *logger.Logger) (*HistoryStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &HistoryStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *HistoryStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	// One row per recorded state vector, in import order
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time INTEGER NOT NULL,
			icao24 TEXT NOT NULL,
			lat REAL,
			lon REAL,
			velocity REAL,
			heading REAL,
			vertrate REAL,
			callsign TEXT,
			onground INTEGER NOT NULL DEFAULT 0,
			baroaltitude REAL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_positions table: %w", err)
	}

	// Subset of the OpenSky aircraft database
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS aircraft (
			icao24 TEXT PRIMARY KEY,
			registration TEXT,
			manufacturericao TEXT,
			manufacturername TEXT,
			model TEXT,
			typecode TEXT,
			icaoaircrafttype TEXT,
			operator TEXT,
			engines TEXT,
			serialnumber TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create aircraft table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_flight_positions_icao24 ON flight_positions(icao24)`)
	if err != nil {
		return fmt.Errorf("failed to create index on flight_positions.icao24: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_flight_positions_time ON flight_positions(time)`)
	if err != nil {
		return fmt.Errorf("failed to create index on flight_positions.time: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullString stores empty strings as NULL so COUNT(DISTINCT) skips them
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
