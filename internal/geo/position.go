// Package geo groups noisy aircraft position reports into airport and
// approach events: great-circle distance, proximity filtering, airport
// deduplication and arrival classification. Every function is a pure
// computation over in-memory slices.
//
// Latitudes must lie in [-90, 90] and longitudes in [-180, 180]. Values
// outside those ranges are not rejected here; callers filter them first.
package geo

import "math"

// Position is a single aircraft state sample.
// Latitude and Longitude are nil when the sample carries no position fix.
type Position struct {
	ICAO24    string   `json:"icao24"`
	Timestamp int64    `json:"time"` // Unix seconds
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	OnGround  bool     `json:"on_ground"`
}

// LatLon is a plain coordinate pair in degrees
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPosition builds a sample with a position fix
func NewPosition(icao24 string, timestamp int64, lat, lon float64, onGround bool) Position {
	return Position{
		ICAO24:    icao24,
		Timestamp: timestamp,
		Latitude:  &lat,
		Longitude: &lon,
		OnGround:  onGround,
	}
}

// NewPositionNoFix builds a sample without a position fix
func NewPositionNoFix(icao24 string, timestamp int64, onGround bool) Position {
	return Position{
		ICAO24:    icao24,
		Timestamp: timestamp,
		OnGround:  onGround,
	}
}

// HasFix reports whether both coordinates are present and numeric
func (p Position) HasFix() bool {
	return p.Latitude != nil && p.Longitude != nil &&
		!math.IsNaN(*p.Latitude) && !math.IsNaN(*p.Longitude)
}

// Coords returns the coordinates and whether they are usable
func (p Position) Coords() (lat, lon float64, ok bool) {
	if !p.HasFix() {
		return 0, 0, false
	}
	return *p.Latitude, *p.Longitude, true
}
