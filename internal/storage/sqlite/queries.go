package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/skyboard/internal/geo"
	"github.com/yegors/skyboard/pkg/logger"
)

// FlightSample is one recorded state vector
type FlightSample struct {
	Time         int64    `json:"time"`
	ICAO24       string   `json:"icao24"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Velocity     *float64 `json:"velocity"` // m/s
	Heading      *float64 `json:"heading"`
	VertRate     *float64 `json:"vertrate"` // m/s
	Callsign     string   `json:"callsign,omitempty"`
	OnGround     bool     `json:"on_ground"`
	BaroAltitude *float64 `json:"baroaltitude"` // meters
}

// Aircraft is an entry of the aircraft database
type Aircraft struct {
	ICAO24           string `json:"icao24"`
	Registration     string `json:"registration,omitempty"`
	ManufacturerICAO string `json:"manufacturer_icao,omitempty"`
	ManufacturerName string `json:"manufacturer_name,omitempty"`
	Model            string `json:"model,omitempty"`
	TypeCode         string `json:"typecode,omitempty"`
	ICAOAircraftType string `json:"icao_aircraft_type,omitempty"`
	Operator         string `json:"operator,omitempty"`
	Engines          string `json:"engines,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
}

// FlightTrack is every sample of one aircraft with its data quality
type FlightTrack struct {
	ICAO24              string         `json:"icao24"`
	Aircraft            *Aircraft      `json:"aircraft,omitempty"`
	Samples             []FlightSample `json:"samples"`
	MissingLatitudePct  float64        `json:"missing_latitude_pct"`
	MissingLongitudePct float64        `json:"missing_longitude_pct"`
}

// HourCount is the number of distinct aircraft seen during one UTC hour
type HourCount struct {
	Hour     int `json:"hour"`
	Aircraft int `json:"aircraft"`
}

// Summary describes the whole flight log
type Summary struct {
	Samples       int         `json:"samples"`
	Aircraft      int         `json:"aircraft"`
	FirstTime     time.Time   `json:"first_time"`
	LastTime      time.Time   `json:"last_time"`
	Span          string      `json:"span"`
	MeanVelocity  float64     `json:"mean_velocity"` // m/s
	MeanLatitude  float64     `json:"mean_latitude"`
	MeanLongitude float64     `json:"mean_longitude"`
	PerHour       []HourCount `json:"per_hour"`
}

// Count is a name with its number of occurrences
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FleetSummary describes the aircraft database
type FleetSummary struct {
	Aircraft        int     `json:"aircraft"`
	Models          int     `json:"models"`
	Manufacturers   int     `json:"manufacturers"`
	TopTypes        []Count `json:"top_types"`
	TopManufacturer *Count  `json:"top_manufacturer,omitempty"`
}

// Positions returns the position records of aircraft known to the aircraft
// database, in import order, keeping one row out of every stride (the first
// row is always kept). A stride below 1 keeps everything.
func (s *HistoryStorage) Positions(ctx context.Context, stride int) ([]geo.Position, error) {
	if stride < 1 {
		stride = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.time, p.icao24, p.lat, p.lon, p.onground
		FROM flight_positions p
		INNER JOIN aircraft a ON a.icao24 = p.icao24
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []geo.Position{}
	i := 0
	for rows.Next() {
		if i%stride != 0 {
			i++
			continue
		}
		i++

		var p geo.Position
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&p.Timestamp, &p.ICAO24, &lat, &lon, &p.OnGround); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Latitude = floatPtr(lat)
		p.Longitude = floatPtr(lon)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	s.logger.Debug("Loaded history positions",
		logger.Int("rows", i),
		logger.Int("kept", len(positions)),
		logger.Int("stride", stride))

	return positions, nil
}

// FlightTrack returns all samples of one aircraft in time order
func (s *HistoryStorage) FlightTrack(ctx context.Context, icao24 string) (*FlightTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, icao24, lat, lon, velocity, heading, vertrate, callsign, onground, baroaltitude
		FROM flight_positions
		WHERE icao24 = ?
		ORDER BY time, id
	`, icao24)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight track: %w", err)
	}
	defer rows.Close()

	track := &FlightTrack{ICAO24: icao24, Samples: []FlightSample{}}
	missingLat, missingLon := 0, 0
	for rows.Next() {
		var fs FlightSample
		var lat, lon, vel, hdg, vr, alt sql.NullFloat64
		var callsign sql.NullString
		if err := rows.Scan(&fs.Time, &fs.ICAO24, &lat, &lon, &vel, &hdg, &vr, &callsign, &fs.OnGround, &alt); err != nil {
			return nil, fmt.Errorf("failed to scan flight sample: %w", err)
		}
		fs.Latitude = floatPtr(lat)
		fs.Longitude = floatPtr(lon)
		fs.Velocity = floatPtr(vel)
		fs.Heading = floatPtr(hdg)
		fs.VertRate = floatPtr(vr)
		fs.BaroAltitude = floatPtr(alt)
		fs.Callsign = callsign.String

		if fs.Latitude == nil {
			missingLat++
		}
		if fs.Longitude == nil {
			missingLon++
		}
		track.Samples = append(track.Samples, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flight track: %w", err)
	}

	if len(track.Samples) == 0 {
		return nil, ErrNotFound
	}

	n := float64(len(track.Samples))
	track.MissingLatitudePct = float64(missingLat) / n * 100
	track.MissingLongitudePct = float64(missingLon) / n * 100

	info, err := s.AircraftInfo(ctx, icao24)
	switch {
	case err == nil:
		track.Aircraft = info
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	return track, nil
}

// AircraftInfo looks up one aircraft in the aircraft database
func (s *HistoryStorage) AircraftInfo(ctx context.Context, icao24 string) (*Aircraft, error) {
	var a Aircraft
	var reg, mICAO, mName, model, tc, typ, op, eng, sn sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT icao24, registration, manufacturericao, manufacturername, model, typecode,
			icaoaircrafttype, operator, engines, serialnumber
		FROM aircraft
		WHERE icao24 = ?
	`, icao24).Scan(&a.ICAO24, &reg, &mICAO, &mName, &model, &tc, &typ, &op, &eng, &sn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft: %w", err)
	}

	a.Registration = reg.String
	a.ManufacturerICAO = mICAO.String
	a.ManufacturerName = mName.String
	a.Model = model.String
	a.TypeCode = tc.String
	a.ICAOAircraftType = typ.String
	a.Operator = op.String
	a.Engines = eng.String
	a.SerialNumber = sn.String

	return &a, nil
}

// Summary computes flight log statistics. The log must not be empty.
func (s *HistoryStorage) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	var first, last sql.NullInt64
	var vel, lat, lon sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT icao24), MIN(time), MAX(time), AVG(velocity), AVG(lat), AVG(lon)
		FROM flight_positions
	`).Scan(&sum.Samples, &sum.Aircraft, &first, &last, &vel, &lat, &lon)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize flight log: %w", err)
	}
	if sum.Samples == 0 {
		return nil, ErrNotFound
	}

	sum.FirstTime = time.Unix(first.Int64, 0).UTC()
	sum.LastTime = time.Unix(last.Int64, 0).UTC()
	sum.Span = sum.LastTime.Sub(sum.FirstTime).String()
	sum.MeanVelocity = vel.Float64
	sum.MeanLatitude = lat.Float64
	sum.MeanLongitude = lon.Float64

	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%H', time, 'unixepoch') AS INTEGER) AS hour, COUNT(DISTINCT icao24)
		FROM flight_positions
		GROUP BY hour
		ORDER BY hour
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly counts: %w", err)
	}
	defer rows.Close()

	sum.PerHour = []HourCount{}
	for rows.Next() {
		var hc HourCount
		if err := rows.Scan(&hc.Hour, &hc.Aircraft); err != nil {
			return nil, fmt.Errorf("failed to scan hourly count: %w", err)
		}
		sum.PerHour = append(sum.PerHour, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hourly counts: %w", err)
	}

	return &sum, nil
}

// Fleet computes statistics over the aircraft database
func (s *HistoryStorage) Fleet(ctx context.Context) (*FleetSummary, error) {
	var f FleetSummary

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT model), COUNT(DISTINCT manufacturername)
		FROM aircraft
	`).Scan(&f.Aircraft, &f.Models, &f.Manufacturers)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize aircraft database: %w", err)
	}

	f.TopTypes, err = s.topValues(ctx, "icaoaircrafttype", 5)
	if err != nil {
		return nil, err
	}

	top, err := s.topValues(ctx, "manufacturername", 1)
	if err != nil {
		return nil, err
	}
	if len(top) > 0 {
		f.TopManufacturer = &top[0]
	}

	return &f, nil
}

// topValues returns the most frequent non-null values of an aircraft column
func (s *HistoryStorage) topValues(ctx context.Context, column string, limit int) ([]Count, error) {
	switch column {
	case "icaoaircrafttype", "manufacturername", "model", "typecode":
	default:
		return nil, fmt.Errorf("unsupported column %q", column)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) AS n
		FROM aircraft
		WHERE %[1]s IS NOT NULL
		GROUP BY %[1]s
		ORDER BY n DESC, %[1]s
		LIMIT ?
	`, column), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top %s: %w", column, err)
	}
	defer rows.Close()

	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top %s: %w", column, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
