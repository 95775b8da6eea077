package geo

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifyArrivalsScenarios(t *testing.T) {
	af1 := []Position{
		NewPosition("AF1", 0, 43.61, 1.43, true),
		NewPosition("AF1", 10, 43.6, 1.44, true),
	}

	tests := []struct {
		name       string
		records    []Position
		airportLat float64
		airportLon float64
		want       map[string]ApproachTrack
	}{
		{
			name:       "aircraft stopped at the airport is an arrival",
			records:    af1,
			airportLat: 43.6,
			airportLon: 1.44,
			want: map[string]ApproachTrack{
				"AF1": {ICAO24: "AF1", Points: []TrackPoint{
					{Latitude: 43.61, Longitude: 1.43, Timestamp: 0},
					{Latitude: 43.6, Longitude: 1.44, Timestamp: 10},
				}},
			},
		},
		{
			name:       "airport far away excludes everything",
			records:    af1,
			airportLat: 10.0,
			airportLon: 10.0,
			want:       map[string]ApproachTrack{},
		},
		{
			name:       "empty input",
			records:    nil,
			airportLat: 43.6,
			airportLon: 1.44,
			want:       map[string]ApproachTrack{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyArrivals(tt.records, tt.airportLat, tt.airportLon, DefaultArrivalOptions())
			if got == nil {
				t.Fatal("ClassifyArrivals returned a nil map")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ClassifyArrivals mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyArrivalsRules(t *testing.T) {
	const lat, lon = 49.0097, 2.5479

	records := []Position{
		// Landed, samples out of order
		NewPosition("landed", 300, lat+0.005, lon-0.005, true),
		NewPosition("landed", 100, lat+0.08, lon+0.02, false),
		NewPosition("landed", 200, lat+0.04, lon+0.01, false),

		// Last ground sample is outside the degree tolerance
		NewPosition("taxiaway", 100, lat+0.001, lon, true),
		NewPosition("taxiaway", 200, lat+0.03, lon, true),

		// Never on the ground
		NewPosition("overflight", 100, lat, lon, false),
		NewPosition("overflight", 200, lat+0.01, lon, false),

		// Only a single usable point
		NewPosition("single", 100, lat, lon, true),
		NewPositionNoFix("single", 50, false),

		// Ground sample far away, outside the near radius, is ignored; the
		// last ground sample inside the radius decides
		NewPosition("departed", 100, lat, lon, true),
		NewPosition("departed", 150, lat+0.05, lon, false),
		NewPosition("departed", 200, 43.6293, 1.3638, true),

		// Tolerance is strict in each axis
		NewPosition("edge", 100, lat+0.05, lon, false),
		NewPosition("edge", 200, lat, lon+0.0100001, true),
	}

	got := ClassifyArrivals(records, lat, lon, ArrivalOptions{})

	wantIDs := map[string]bool{"landed": true, "departed": true}
	for id := range got {
		if !wantIDs[id] {
			t.Errorf("unexpected arrival %s", id)
		}
	}
	for id := range wantIDs {
		if _, ok := got[id]; !ok {
			t.Errorf("missing arrival %s", id)
		}
	}

	landed := got["landed"]
	wantTimes := []int64{100, 200, 300}
	if len(landed.Points) != len(wantTimes) {
		t.Fatalf("landed track has %d points, want %d", len(landed.Points), len(wantTimes))
	}
	for i, p := range landed.Points {
		if p.Timestamp != wantTimes[i] {
			t.Errorf("point %d timestamp = %d, want %d", i, p.Timestamp, wantTimes[i])
		}
	}
	if last := landed.Points[len(landed.Points)-1]; last.Timestamp != 300 {
		t.Errorf("newest point = %+v, want timestamp 300", last)
	}

	departed := got["departed"]
	if n := len(departed.Points); n != 2 {
		t.Errorf("departed track has %d points, want 2 (far sample excluded)", n)
	}
}

func TestClassifyArrivalsKeepsMostRecentPoints(t *testing.T) {
	const lat, lon = 45.7256, 5.0811

	var records []Position
	for i := 0; i < 400; i++ {
		onGround := i >= 390
		records = append(records, NewPosition("f-gkxa", int64(1000+i), lat+float64(400-i)*0.0001, lon, onGround))
	}
	// Noise from other aircraft should not disturb grouping
	for i := 0; i < 20; i++ {
		records = append(records, NewPosition(fmt.Sprintf("other%d", i), int64(i), lat+0.05, lon+0.05, false))
	}

	t.Run("default limit", func(t *testing.T) {
		got := ClassifyArrivals(records, lat, lon, DefaultArrivalOptions())
		track, ok := got["f-gkxa"]
		if !ok {
			t.Fatal("expected f-gkxa to be classified as arrival")
		}
		if len(track.Points) != DefaultMaxTrackPoints {
			t.Fatalf("track has %d points, want %d", len(track.Points), DefaultMaxTrackPoints)
		}
		if first := track.Points[0].Timestamp; first != 1250 {
			t.Errorf("oldest kept point = %d, want 1250", first)
		}
		if last := track.Points[len(track.Points)-1].Timestamp; last != 1399 {
			t.Errorf("newest point = %d, want 1399", last)
		}
		if len(got) != 1 {
			t.Errorf("expected exactly one arrival, got %d", len(got))
		}
	})

	t.Run("custom limit", func(t *testing.T) {
		got := ClassifyArrivals(records, lat, lon, ArrivalOptions{MaxTrackPoints: 10})
		if n := len(got["f-gkxa"].Points); n != 10 {
			t.Errorf("track has %d points, want 10", n)
		}
	})
}

func TestClassifyArrivalsNeverReturnsShortTracks(t *testing.T) {
	const lat, lon = 43.6293, 1.3638

	var records []Position
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("ac%02d", i%7)
		records = append(records, NewPosition(id, int64(i), lat+float64(i%5)*0.002, lon-float64(i%3)*0.002, i%2 == 0))
		if i%4 == 0 {
			records = append(records, NewPositionNoFix(id, int64(i)+1000, true))
		}
	}

	for _, maxPoints := range []int{1, 2, 3, 150} {
		got := ClassifyArrivals(records, lat, lon, ArrivalOptions{MaxTrackPoints: maxPoints})
		for id, track := range got {
			if len(track.Points) < 2 {
				t.Errorf("max=%d: track %s has %d points", maxPoints, id, len(track.Points))
			}
			if track.ICAO24 != id {
				t.Errorf("max=%d: track keyed %s has ICAO24 %s", maxPoints, id, track.ICAO24)
			}
		}
	}
}

func TestClassifyArrivalsDoesNotMutateInput(t *testing.T) {
	records := []Position{
		NewPosition("AF1", 10, 43.6, 1.44, true),
		NewPosition("AF1", 0, 43.61, 1.43, true),
	}
	before := append([]Position(nil), records...)

	ClassifyArrivals(records, 43.6, 1.44, DefaultArrivalOptions())

	if diff := cmp.Diff(before, records); diff != "" {
		t.Errorf("input changed (-before +after):\n%s", diff)
	}
}

func TestArrivalOptions(t *testing.T) {
	got := ArrivalOptions{ToleranceDeg: 0.02}.WithDefaults()
	want := ArrivalOptions{NearRadiusKm: 15, ToleranceDeg: 0.02, MaxTrackPoints: 150}
	if got != want {
		t.Errorf("WithDefaults = %+v, want %+v", got, want)
	}
	if got.Key() == DefaultArrivalOptions().Key() {
		t.Error("different options should give different keys")
	}
}
