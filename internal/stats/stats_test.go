package stats

import (
	"math"
	"testing"

	"github.com/yegors/skyboard/internal/opensky"
)

var france = opensky.BBox{LaMin: 42, LoMin: -5, LaMax: 51, LoMax: 8}

func f(v float64) *float64 { return &v }

func testStates() []opensky.StateVector {
	return []opensky.StateVector{
		{ICAO24: "39cf0a", Callsign: "AFR12", OriginCountry: "France", Latitude: f(43.6), Longitude: f(1.44),
			OnGround: true, Squawk: "7000", Velocity: f(5), VerticalRate: f(0), TrueTrack: f(140)},
		{ICAO24: "3946e2", OriginCountry: "France", Latitude: f(48.7), Longitude: f(2.3),
			Velocity: f(200), VerticalRate: f(5), BaroAltitude: f(3000)},
		{ICAO24: "4ca7b2", OriginCountry: "Ireland", Latitude: f(53.4), Longitude: f(-6.2),
			Velocity: f(230), VerticalRate: f(-5), BaroAltitude: f(9000)},
		{ICAO24: "a1b2c3", OriginCountry: "United States", OnGround: true, Velocity: f(0)},
		{ICAO24: "a1b2c3", OriginCountry: "United States", Latitude: f(45), Longitude: f(5), OnGround: true},
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize(testStates(), france)

	if sum.Aircraft != 4 {
		t.Errorf("Aircraft = %d, want 4", sum.Aircraft)
	}
	if sum.OriginCountries != 3 {
		t.Errorf("OriginCountries = %d, want 3", sum.OriginCountries)
	}
	if sum.GroundWithSquawk != 1 {
		t.Errorf("GroundWithSquawk = %d, want 1", sum.GroundWithSquawk)
	}
	if sum.GroundPct != 60 {
		t.Errorf("GroundPct = %f, want 60", sum.GroundPct)
	}
	if sum.MeanVerticalRate == nil || *sum.MeanVerticalRate != 0 {
		t.Errorf("MeanVerticalRate = %v, want 0", sum.MeanVerticalRate)
	}
	// Only the two French states with a velocity count
	if sum.MeanRegionVelocity == nil || math.Abs(*sum.MeanRegionVelocity-102.5) > 1e-9 {
		t.Errorf("MeanRegionVelocity = %v, want 102.5", sum.MeanRegionVelocity)
	}
	if len(sum.Velocity) != DefaultBins || len(sum.BaroAltitude) != DefaultBins {
		t.Errorf("histograms have %d/%d bins", len(sum.Velocity), len(sum.BaroAltitude))
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, france)
	if sum.Aircraft != 0 || sum.GroundPct != 0 || sum.MeanVerticalRate != nil || sum.Velocity != nil {
		t.Errorf("unexpected summary of nothing: %+v", sum)
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name       string
		showGround bool
		wantIDs    []string
	}{
		{name: "airborne only", showGround: false, wantIDs: []string{"3946e2"}},
		{name: "with ground", showGround: true, wantIDs: []string{"39cf0a", "3946e2", "a1b2c3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := Visible(testStates(), tt.showGround, france)

			if set.Airborne != 1 || set.OnGround != 2 {
				t.Errorf("counters = %d airborne, %d on ground", set.Airborne, set.OnGround)
			}
			if len(set.Aircraft) != len(tt.wantIDs) {
				t.Fatalf("got %d aircraft, want %d", len(set.Aircraft), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if set.Aircraft[i].ICAO24 != id {
					t.Errorf("aircraft %d = %s, want %s", i, set.Aircraft[i].ICAO24, id)
				}
			}
		})
	}

	set := Visible(testStates(), true, france)
	afr := set.Aircraft[0]
	if afr.Callsign != "AFR12" || afr.VelocityKmh != 18 || afr.TrueTrack != 140 {
		t.Errorf("conversion wrong: %+v", afr)
	}
	if set.Aircraft[1].Callsign != "N/A" {
		t.Errorf("missing callsign shown as %q", set.Aircraft[1].Callsign)
	}
}

func TestHistogram(t *testing.T) {
	if got := Histogram(nil, 10); got != nil {
		t.Errorf("Histogram(nil) = %v", got)
	}
	if got := Histogram([]float64{math.NaN()}, 10); got != nil {
		t.Errorf("Histogram(NaN) = %v", got)
	}

	got := Histogram([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, math.NaN()}, 5)
	if len(got) != 5 {
		t.Fatalf("got %d bins, want 5", len(got))
	}
	wantCounts := []int{2, 2, 2, 2, 3}
	total := 0
	for i, b := range got {
		if b.Count != wantCounts[i] {
			t.Errorf("bin %d [%f, %f) count = %d, want %d", i, b.Lo, b.Hi, b.Count, wantCounts[i])
		}
		total += b.Count
	}
	if total != 11 {
		t.Errorf("total = %d, want 11", total)
	}
	if got[0].Lo != 0 || got[4].Hi != 10 {
		t.Errorf("range = [%f, %f], want [0, 10]", got[0].Lo, got[4].Hi)
	}

	withInf := Histogram([]float64{1, 2, math.Inf(1), math.Inf(-1)}, 20)
	if len(withInf) != 20 || withInf[0].Lo != 1 || withInf[19].Hi != 2 {
		t.Fatalf("infinite values widened the range: %+v", withInf)
	}
	if withInf[0].Count+withInf[19].Count != 2 {
		t.Errorf("infinite values were counted: %+v", withInf)
	}
	if got := Histogram([]float64{math.Inf(1)}, 5); got != nil {
		t.Errorf("Histogram(+Inf) = %v", got)
	}
	if got := Histogram([]float64{-math.MaxFloat64, math.MaxFloat64}, 5); got != nil {
		t.Errorf("overflowing span = %v", got)
	}

	same := Histogram([]float64{3, 3, 3}, 20)
	if len(same) != 1 || same[0].Count != 3 {
		t.Errorf("constant input = %+v", same)
	}
}
