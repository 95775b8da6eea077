package geo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDeduplicateMergesNearbyCandidates(t *testing.T) {
	candidates := []Candidate{
		{ID: "airport1", ICAO24: "39cf0a", Latitude: 43.6, Longitude: 1.44},
		{ID: "airport2", ICAO24: "3946e2", Latitude: 43.605, Longitude: 1.445},
	}

	got := Deduplicate(candidates, DefaultClusterThresholdKm)

	want := []AirportCluster{
		{ID: "airport1", Latitude: 43.6, Longitude: 1.44, SourceICAO24: "39cf0a", Members: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Deduplicate mismatch (-want +got):\n%s", diff)
	}
}

func TestDeduplicate(t *testing.T) {
	cdg := Candidate{ID: "airport1", Latitude: 49.0097, Longitude: 2.5479}
	cdgTaxiway := Candidate{ID: "airport2", Latitude: 49.0150, Longitude: 2.5600}
	orly := Candidate{ID: "airport3", Latitude: 48.7262, Longitude: 2.3652}
	tls := Candidate{ID: "airport4", Latitude: 43.6293, Longitude: 1.3638}
	tlsApron := Candidate{ID: "airport5", Latitude: 43.6350, Longitude: 1.3700}

	tests := []struct {
		name      string
		in        []Candidate
		threshold float64
		wantIDs   []string
		wantSizes []int
	}{
		{
			name:      "empty input",
			in:        nil,
			threshold: 10,
			wantIDs:   []string{},
			wantSizes: []int{},
		},
		{
			name:      "first seen point is kept",
			in:        []Candidate{cdg, cdgTaxiway, orly, tls, tlsApron},
			threshold: 10,
			wantIDs:   []string{"airport1", "airport3", "airport4"},
			wantSizes: []int{2, 1, 2},
		},
		{
			name:      "order decides the representative",
			in:        []Candidate{tlsApron, tls, cdgTaxiway, cdg},
			threshold: 10,
			wantIDs:   []string{"airport5", "airport2"},
			wantSizes: []int{2, 2},
		},
		{
			name:      "large threshold merges Paris airports",
			in:        []Candidate{cdg, orly, tls},
			threshold: 50,
			wantIDs:   []string{"airport1", "airport4"},
			wantSizes: []int{2, 1},
		},
		{
			name:      "distance equal to threshold is not a duplicate",
			in:        []Candidate{cdg, orly},
			threshold: Distance(orly.Latitude, orly.Longitude, cdg.Latitude, cdg.Longitude),
			wantIDs:   []string{"airport1", "airport3"},
			wantSizes: []int{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deduplicate(tt.in, tt.threshold)
			if got == nil {
				t.Fatal("Deduplicate returned nil slice")
			}

			ids := make([]string, len(got))
			sizes := make([]int, len(got))
			for i, c := range got {
				ids[i] = c.ID
				sizes[i] = c.Members
			}
			if diff := cmp.Diff(tt.wantIDs, ids); diff != "" {
				t.Errorf("cluster IDs (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantSizes, sizes); diff != "" {
				t.Errorf("cluster sizes (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	var candidates []Candidate
	for i, p := range []LatLon{
		{49.0097, 2.5479}, {49.02, 2.53}, {48.7262, 2.3652}, {48.73, 2.37},
		{43.6293, 1.3638}, {45.7256, 5.0811}, {45.72, 5.09}, {43.4393, 5.2214},
		{47.1532, -1.6107}, {44.8283, -0.7156}, {44.83, -0.72}, {51.47, -0.4543},
	} {
		candidates = append(candidates, Candidate{
			ID:        "airport" + string(rune('a'+i)),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		})
	}

	for _, threshold := range []float64{1, 10, 50, 300} {
		first := Deduplicate(candidates, threshold)

		reps := make([]Candidate, len(first))
		for i, c := range first {
			reps[i] = Candidate{ID: c.ID, ICAO24: c.SourceICAO24, Latitude: c.Latitude, Longitude: c.Longitude}
		}
		second := Deduplicate(reps, threshold)

		if len(second) != len(first) {
			t.Fatalf("threshold %f: second pass gave %d clusters, first gave %d", threshold, len(second), len(first))
		}
		for i := range first {
			if first[i].ID != second[i].ID || first[i].Latitude != second[i].Latitude || first[i].Longitude != second[i].Longitude {
				t.Errorf("threshold %f: cluster %d changed from %+v to %+v", threshold, i, first[i], second[i])
			}
			if second[i].Members != 1 {
				t.Errorf("threshold %f: representative %s merged again", threshold, second[i].ID)
			}
		}
	}
}

func TestDeduplicateMembersStayWithinThreshold(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Latitude: 49.0, Longitude: 2.5},
		{ID: "b", Latitude: 49.05, Longitude: 2.5},
		{ID: "c", Latitude: 49.1, Longitude: 2.5},
		{ID: "d", Latitude: 49.15, Longitude: 2.5},
		{ID: "e", Latitude: 49.2, Longitude: 2.5},
	}

	clusters := Deduplicate(candidates, 10)

	// Every candidate must be either a representative or within the
	// threshold of one; chains never extend a cluster
	for _, c := range candidates {
		ok := false
		for _, rep := range clusters {
			if rep.ID == c.ID || Distance(c.Latitude, c.Longitude, rep.Latitude, rep.Longitude) < 10 {
				ok = true
				break
			}
		}
		if !ok {
			t.Errorf("candidate %s is not covered by any cluster", c.ID)
		}
	}
	if len(clusters) != 3 {
		t.Errorf("expected 3 clusters (a, c and e), got %d: %+v", len(clusters), clusters)
	}
}

func TestCentroid(t *testing.T) {
	if _, _, ok := Centroid(nil); ok {
		t.Error("Centroid of no clusters should report ok=false")
	}

	lat, lon, ok := Centroid([]AirportCluster{
		{ID: "a", Latitude: 40, Longitude: 0},
		{ID: "b", Latitude: 50, Longitude: 10},
	})
	if !ok || lat != 45 || lon != 5 {
		t.Errorf("Centroid = (%f, %f, %v), want (45, 5, true)", lat, lon, ok)
	}
}

func TestFirstGroundSightings(t *testing.T) {
	records := []Position{
		NewPosition("b2", 50, 48.72, 2.36, true),
		NewPosition("a1", 30, 49.00, 2.54, false),
		NewPositionNoFix("a1", 10, true),
		NewPosition("a1", 40, 49.01, 2.55, true),
		NewPosition("a1", 20, 49.02, 2.56, true),
		NewPosition("b2", 60, 43.63, 1.36, true),
		NewPosition("c3", 70, 45.72, 5.08, false),
	}

	got := FirstGroundSightings(records, "airport")

	want := []Candidate{
		{ID: "airport1", ICAO24: "a1", Latitude: 49.02, Longitude: 2.56, Timestamp: 20},
		{ID: "airport2", ICAO24: "b2", Latitude: 48.72, Longitude: 2.36, Timestamp: 50},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FirstGroundSightings mismatch (-want +got):\n%s", diff)
	}
}

func TestFindCluster(t *testing.T) {
	clusters := []AirportCluster{{ID: "airport1"}, {ID: "airport7"}}
	if c, ok := FindCluster(clusters, "airport7"); !ok || c.ID != "airport7" {
		t.Errorf("FindCluster(airport7) = %+v, %v", c, ok)
	}
	if _, ok := FindCluster(clusters, "airport2"); ok {
		t.Error("FindCluster found a cluster that does not exist")
	}
}
