package sqlite

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yegors/skyboard/pkg/logger"
)

// header maps CSV column names to their index
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	h := make(header, len(names))
	for i, n := range names {
		h[strings.ToLower(strings.TrimSpace(n))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}
	return h, nil
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (h header) float(rec []string, name string) (*float64, error) {
	v := h.get(rec, name)
	if v == "" || strings.EqualFold(v, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &f, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// ImportFlightLog loads a flight-log CSV (OpenSky historical state vector
// columns: time, icao24, lat, lon, velocity, heading, vertrate, callsign,
// onground, baroaltitude, ...) in a single transaction. It returns the
// number of rows stored.
func (s *HistoryStorage) ImportFlightLog(ctx context.Context, r io.Reader) (int, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, "time", "icao24", "lat", "lon", "onground")
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flight_positions (time, icao24, lat, lon, velocity, heading, vertrate, callsign, onground, baroaltitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}

		sample, err := parseFlightRow(h, rec)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}

		if _, err := stmt.ExecContext(ctx,
			sample.Time, sample.ICAO24,
			nullFloat(sample.Latitude), nullFloat(sample.Longitude),
			nullFloat(sample.Velocity), nullFloat(sample.Heading), nullFloat(sample.VertRate),
			nullString(sample.Callsign), boolToInt(sample.OnGround), nullFloat(sample.BaroAltitude),
		); err != nil {
			return 0, fmt.Errorf("line %d: failed to insert: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit flight log: %w", err)
	}

	s.logger.Info("Imported flight log", logger.Int("rows", count))
	return count, nil
}

func parseFlightRow(h header, rec []string) (FlightSample, error) {
	var fs FlightSample

	ts := h.get(rec, "time")
	t, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return fs, fmt.Errorf("invalid time %q: %w", ts, err)
	}
	fs.Time = int64(t)

	fs.ICAO24 = strings.ToLower(h.get(rec, "icao24"))
	if fs.ICAO24 == "" {
		return fs, fmt.Errorf("missing icao24")
	}

	if fs.Latitude, err = h.float(rec, "lat"); err != nil {
		return fs, err
	}
	if fs.Longitude, err = h.float(rec, "lon"); err != nil {
		return fs, err
	}
	if fs.Velocity, err = h.float(rec, "velocity"); err != nil {
		return fs, err
	}
	if fs.Heading, err = h.float(rec, "heading"); err != nil {
		return fs, err
	}
	if fs.VertRate, err = h.float(rec, "vertrate"); err != nil {
		return fs, err
	}
	if fs.BaroAltitude, err = h.float(rec, "baroaltitude"); err != nil {
		return fs, err
	}
	fs.Callsign = h.get(rec, "callsign")

	if v := h.get(rec, "onground"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fs, fmt.Errorf("invalid onground %q: %w", v, err)
		}
		fs.OnGround = b
	}

	return fs, nil
}

// ImportAircraftDB loads the OpenSky aircraft database CSV. Rows for an
// already known icao24 replace the old ones. It returns the number of rows
// stored.
func (s *HistoryStorage) ImportAircraftDB(ctx context.Context, r io.Reader) (int, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr, "icao24")
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO aircraft (icao24, registration, manufacturericao, manufacturername, model, typecode,
			icaoaircrafttype, operator, engines, serialnumber)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	skipped := 0
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}

		icao := strings.ToLower(h.get(rec, "icao24"))
		if icao == "" {
			skipped++
			continue
		}

		if _, err := stmt.ExecContext(ctx,
			icao,
			nullString(h.get(rec, "registration")),
			nullString(h.get(rec, "manufacturericao")),
			nullString(h.get(rec, "manufacturername")),
			nullString(h.get(rec, "model")),
			nullString(h.get(rec, "typecode")),
			nullString(h.get(rec, "icaoaircrafttype")),
			nullString(h.get(rec, "operator")),
			nullString(h.get(rec, "engines")),
			nullString(h.get(rec, "serialnumber")),
		); err != nil {
			return 0, fmt.Errorf("line %d: failed to insert: %w", line, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit aircraft database: %w", err)
	}

	s.logger.Info("Imported aircraft database",
		logger.Int("rows", count),
		logger.Int("skipped", skipped))
	return count, nil
}
