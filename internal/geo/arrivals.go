package geo

import (
	"fmt"
	"math"
	"sort"
)

// Arrival classification defaults
const (
	DefaultNearRadiusKm   = 15.0
	DefaultToleranceDeg   = 0.01
	DefaultMaxTrackPoints = 150
)

// ArrivalOptions tunes ClassifyArrivals. Zero fields take the defaults.
type ArrivalOptions struct {
	NearRadiusKm   float64 `json:"near_radius_km"`   // Only samples this close to the airport are considered
	ToleranceDeg   float64 `json:"tolerance_deg"`    // Max |Δlat| and |Δlon| of the last ground sample, in raw degrees
	MaxTrackPoints int     `json:"max_track_points"` // Most recent samples kept per track
}

// DefaultArrivalOptions returns the standard classification settings
func DefaultArrivalOptions() ArrivalOptions {
	return ArrivalOptions{
		NearRadiusKm:   DefaultNearRadiusKm,
		ToleranceDeg:   DefaultToleranceDeg,
		MaxTrackPoints: DefaultMaxTrackPoints,
	}
}

// WithDefaults fills unset fields
func (o ArrivalOptions) WithDefaults() ArrivalOptions {
	if o.NearRadiusKm <= 0 {
		o.NearRadiusKm = DefaultNearRadiusKm
	}
	if o.ToleranceDeg <= 0 {
		o.ToleranceDeg = DefaultToleranceDeg
	}
	if o.MaxTrackPoints <= 0 {
		o.MaxTrackPoints = DefaultMaxTrackPoints
	}
	return o
}

// Key identifies the options in cache keys
func (o ArrivalOptions) Key() string {
	return fmt.Sprintf("%g/%g/%d", o.NearRadiusKm, o.ToleranceDeg, o.MaxTrackPoints)
}

// TrackPoint is one sample of an approach track
type TrackPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"time"`
}

// ApproachTrack is the recent path of one aircraft near an airport, oldest
// point first
type ApproachTrack struct {
	ICAO24 string       `json:"icao24"`
	Points []TrackPoint `json:"points"`
}

// ClassifyArrivals finds the aircraft that ended up on the ground at the given
// airport and returns their recent tracks keyed by ICAO24.
//
// Only samples within NearRadiusKm of the airport are used. An aircraft is an
// arrival when its chronologically last on-ground sample lies within
// ToleranceDeg of the airport in both latitude and longitude. Its track is the
// last MaxTrackPoints samples with a fix; tracks with fewer than two points
// are left out since they cannot be drawn.
func ClassifyArrivals(records []Position, airportLat, airportLon float64, opts ArrivalOptions) map[string]ApproachTrack {
	opts = opts.WithDefaults()
	result := make(map[string]ApproachTrack)

	near := WithinRadius(records, airportLat, airportLon, opts.NearRadiusKm)
	if len(near) == 0 {
		return result
	}

	groups := make(map[string][]Position)
	var order []string
	for _, p := range near {
		if _, ok := groups[p.ICAO24]; !ok {
			order = append(order, p.ICAO24)
		}
		groups[p.ICAO24] = append(groups[p.ICAO24], p)
	}

	for _, id := range order {
		samples := groups[id]
		sort.SliceStable(samples, func(i, j int) bool {
			return samples[i].Timestamp < samples[j].Timestamp
		})

		if !landedAt(samples, airportLat, airportLon, opts.ToleranceDeg) {
			continue
		}

		if track, ok := buildTrack(id, samples, opts.MaxTrackPoints); ok {
			result[id] = track
		}
	}

	return result
}

// landedAt checks the last on-ground sample of a chronologically sorted group
func landedAt(samples []Position, airportLat, airportLon, toleranceDeg float64) bool {
	for i := len(samples) - 1; i >= 0; i-- {
		if !samples[i].OnGround {
			continue
		}
		lat, lon, ok := samples[i].Coords()
		if !ok {
			return false
		}
		return math.Abs(lat-airportLat) < toleranceDeg && math.Abs(lon-airportLon) < toleranceDeg
	}
	return false
}

func buildTrack(id string, samples []Position, maxPoints int) (ApproachTrack, bool) {
	if len(samples) > maxPoints {
		samples = samples[len(samples)-maxPoints:]
	}

	points := make([]TrackPoint, 0, len(samples))
	for _, s := range samples {
		lat, lon, ok := s.Coords()
		if !ok {
			continue
		}
		points = append(points, TrackPoint{Latitude: lat, Longitude: lon, Timestamp: s.Timestamp})
	}

	if len(points) < 2 {
		return ApproachTrack{}, false
	}
	return ApproachTrack{ICAO24: id, Points: points}, true
}

