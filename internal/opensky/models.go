package opensky

import (
	"fmt"
	"math"

	"github.com/yegors/skyboard/internal/physics"
)

// BBox is a latitude/longitude bounding box as used by the states/all
// endpoint
type BBox struct {
	LaMin float64 `json:"lamin" msgpack:"lamin"`
	LoMin float64 `json:"lomin" msgpack:"lomin"`
	LaMax float64 `json:"lamax" msgpack:"lamax"`
	LoMax float64 `json:"lomax" msgpack:"lomax"`
}

// IsZero reports whether no box is set
func (b BBox) IsZero() bool {
	return b.LaMin == 0 && b.LoMin == 0 && b.LaMax == 0 && b.LoMax == 0
}

// Contains reports whether the point lies inside the box, edges included
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.LaMin && lat <= b.LaMax && lon >= b.LoMin && lon <= b.LoMax
}

// BBoxAround derives a box from a center and a radius in nautical miles
func BBoxAround(lat, lon, radiusNM float64) (BBox, error) {
	if radiusNM <= 0 {
		return BBox{}, fmt.Errorf("search radius must be positive for bounding box derivation")
	}

	latDeg := radiusNM / 60.0
	lonDeg := radiusNM / (60.0 * math.Cos(lat*math.Pi/180.0))

	return BBox{
		LaMin: lat - latDeg,
		LoMin: lon - lonDeg,
		LaMax: lat + latDeg,
		LoMax: lon + lonDeg,
	}, nil
}

// StateVector is one aircraft state from OpenSky. Fields that OpenSky reports
// as null are nil.
type StateVector struct {
	ICAO24         string   `json:"icao24" msgpack:"icao24"`
	Callsign       string   `json:"callsign" msgpack:"callsign"`
	OriginCountry  string   `json:"origin_country" msgpack:"origin_country"`
	TimePosition   *int64   `json:"time_position" msgpack:"time_position"`
	LastContact    int64    `json:"last_contact" msgpack:"last_contact"`
	Longitude      *float64 `json:"longitude" msgpack:"longitude"`
	Latitude       *float64 `json:"latitude" msgpack:"latitude"`
	BaroAltitude   *float64 `json:"baro_altitude" msgpack:"baro_altitude"` // meters
	OnGround       bool     `json:"on_ground" msgpack:"on_ground"`
	Velocity       *float64 `json:"velocity" msgpack:"velocity"` // m/s over ground
	TrueTrack      *float64 `json:"true_track" msgpack:"true_track"`
	VerticalRate   *float64 `json:"vertical_rate" msgpack:"vertical_rate"` // m/s
	GeoAltitude    *float64 `json:"geo_altitude" msgpack:"geo_altitude"`   // meters
	Squawk         string   `json:"squawk" msgpack:"squawk"`
	SPI            bool     `json:"spi" msgpack:"spi"`
	PositionSource int      `json:"position_source" msgpack:"position_source"`
	Category       int      `json:"category" msgpack:"category"`
}

// HasPosition reports whether both coordinates are known
func (s StateVector) HasPosition() bool {
	return s.Latitude != nil && s.Longitude != nil &&
		!math.IsNaN(*s.Latitude) && !math.IsNaN(*s.Longitude)
}

// VelocityKmh returns the ground speed in km/h
func (s StateVector) VelocityKmh() (float64, bool) {
	if s.Velocity == nil {
		return 0, false
	}
	return physics.SpeedKmh(*s.Velocity), true
}

// Snapshot is one states/all response
type Snapshot struct {
	Time   int64         `json:"time" msgpack:"time"`
	BBox   BBox          `json:"bbox" msgpack:"bbox"`
	States []StateVector `json:"states" msgpack:"states"`
}

