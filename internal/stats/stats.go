// Package stats summarizes an OpenSky snapshot for the dashboard.
package stats

import (
	"math"

	"github.com/yegors/skyboard/internal/opensky"
)

// DefaultBins is the number of histogram bins used by Summarize
const DefaultBins = 20

// Bin is one histogram bucket. Lo is inclusive, Hi is exclusive except for
// the last bin.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Summary holds the global statistics of a snapshot
type Summary struct {
	Aircraft           int      `json:"aircraft"`
	OriginCountries    int      `json:"origin_countries"`
	GroundWithSquawk   int      `json:"ground_with_squawk"`
	GroundPct          float64  `json:"ground_pct"`
	MeanVerticalRate   *float64 `json:"mean_vertical_rate"`   // m/s, nil without data
	MeanRegionVelocity *float64 `json:"mean_region_velocity"` // m/s inside the region, nil without data
	Velocity           []Bin    `json:"velocity_histogram"`
	VerticalRate       []Bin    `json:"vertical_rate_histogram"`
	BaroAltitude       []Bin    `json:"baro_altitude_histogram"`
}

// Summarize computes the snapshot statistics. region selects the states
// used for the mean velocity.
func Summarize(states []opensky.StateVector, region opensky.BBox) Summary {
	var sum Summary

	aircraft := make(map[string]struct{})
	countries := make(map[string]struct{})
	ground := 0

	var vr, regionVel mean
	velocities := make([]float64, 0, len(states))
	rates := make([]float64, 0, len(states))
	altitudes := make([]float64, 0, len(states))

	for _, s := range states {
		aircraft[s.ICAO24] = struct{}{}
		if s.OriginCountry != "" {
			countries[s.OriginCountry] = struct{}{}
		}

		if s.OnGround {
			ground++
			if s.Squawk != "" {
				sum.GroundWithSquawk++
			}
		}

		if s.VerticalRate != nil {
			vr.add(*s.VerticalRate)
			rates = append(rates, *s.VerticalRate)
		}
		if s.Velocity != nil {
			velocities = append(velocities, *s.Velocity)
			if s.HasPosition() && region.Contains(*s.Latitude, *s.Longitude) {
				regionVel.add(*s.Velocity)
			}
		}
		if s.BaroAltitude != nil {
			altitudes = append(altitudes, *s.BaroAltitude)
		}
	}

	sum.Aircraft = len(aircraft)
	sum.OriginCountries = len(countries)
	if len(states) > 0 {
		sum.GroundPct = math.Round(float64(ground)/float64(len(states))*1000) / 10
	}
	sum.MeanVerticalRate = vr.value()
	sum.MeanRegionVelocity = regionVel.value()
	sum.Velocity = Histogram(velocities, DefaultBins)
	sum.VerticalRate = Histogram(rates, DefaultBins)
	sum.BaroAltitude = Histogram(altitudes, DefaultBins)

	return sum
}

type mean struct {
	total float64
	n     int
}

func (m *mean) add(v float64) {
	if !finite(v) {
		return
	}
	m.total += v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.total / float64(m.n)
	return &v
}

// Aircraft is one aircraft drawn on the map
type Aircraft struct {
	ICAO24        string   `json:"icao24"`
	Callsign      string   `json:"callsign"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	VelocityKmh   float64  `json:"velocity_kmh"`
	TrueTrack     float64  `json:"true_track"`
	MagneticTrack *float64 `json:"magnetic_track,omitempty"`
	BaroAltitude  *float64 `json:"baro_altitude,omitempty"`
	OnGround      bool     `json:"on_ground"`
}

// VisibleSet is the list of aircraft to draw with its counters
type VisibleSet struct {
	Aircraft []Aircraft `json:"aircraft"`
	Airborne int        `json:"airborne"`
	OnGround int        `json:"on_ground"`
}

// Visible returns the aircraft with a position inside region. Aircraft on
// the ground are left out unless showGround is set; both counters always
// cover the whole region.
func Visible(states []opensky.StateVector, showGround bool, region opensky.BBox) VisibleSet {
	set := VisibleSet{Aircraft: []Aircraft{}}

	for _, s := range states {
		if !s.HasPosition() || !region.Contains(*s.Latitude, *s.Longitude) {
			continue
		}

		if s.OnGround {
			set.OnGround++
			if !showGround {
				continue
			}
		} else {
			set.Airborne++
		}

		a := Aircraft{
			ICAO24:       s.ICAO24,
			Callsign:     s.Callsign,
			Latitude:     *s.Latitude,
			Longitude:    *s.Longitude,
			BaroAltitude: s.BaroAltitude,
			OnGround:     s.OnGround,
		}
		if a.Callsign == "" {
			a.Callsign = "N/A"
		}
		if kmh, ok := s.VelocityKmh(); ok {
			a.VelocityKmh = kmh
		}
		if s.TrueTrack != nil {
			a.TrueTrack = *s.TrueTrack
		}
		set.Aircraft = append(set.Aircraft, a)
	}

	return set
}

// Histogram buckets values into bins of equal width between their minimum
// and maximum. NaN and infinite values are ignored. It returns nil when
// there is nothing to count or the span overflows.
func Histogram(values []float64, bins int) []Bin {
	if bins < 1 {
		bins = DefaultBins
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		n++
	}
	if n == 0 {
		return nil
	}

	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: n}}
	}

	if math.IsInf(hi-lo, 0) {
		return nil
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi

	for _, v := range values {
		if !finite(v) {
			continue
		}
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}

	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
