package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	MsToKmh      = 3.6      // Conversion factor from m/s to km/h
	MetersToFeet = 3.28084  // Conversion factor from meters to feet
	FeetToMeters = 0.3048   // Conversion factor from feet to meters
)

// SpeedKmh converts a ground speed in m/s to km/h
func SpeedKmh(ms float64) float64 {
	return ms * MsToKmh
}

// AltitudeFeet converts an altitude in meters to feet
func AltitudeFeet(m float64) float64 {
	return m * MetersToFeet
}

// ------------------------------------------------------------------------------------------------
// NAVIGATION PHYSICS
// ------------------------------------------------------------------------------------------------

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// TrueToMagnetic converts a true track to a magnetic one given the local
// declination (+East, -West)
func TrueToMagnetic(trueDeg, declination float64) float64 {
	return NormalizeHeading(trueDeg - declination)
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Out of model range
		return 0.0
	}

	return mag.D()
}
