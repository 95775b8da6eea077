package geo

import (
	"fmt"
	"sort"
)

// DefaultClusterThresholdKm is the distance below which two ground sightings
// are taken to be the same airport
const DefaultClusterThresholdKm = 10.0

// Candidate is a possible airport location: one aircraft's first observed
// ground position.
type Candidate struct {
	ID        string  `json:"id"`
	ICAO24    string  `json:"icao24"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"time"`
}

// AirportCluster is a deduplicated airport location. The representative is
// the first candidate of its group; it never moves.
type AirportCluster struct {
	ID           string  `json:"id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	SourceICAO24 string  `json:"source_icao24"`
	Members      int     `json:"members"` // Candidates merged into this cluster, representative included
}

// FirstGroundSightings returns one candidate per aircraft: its earliest
// on-ground sample that has a position fix. Aircraft are emitted in ICAO24
// order and candidates are named idPrefix1, idPrefix2, ...
func FirstGroundSightings(records []Position, idPrefix string) []Candidate {
	first := make(map[string]Position)
	for _, r := range records {
		if !r.OnGround || !r.HasFix() {
			continue
		}
		if cur, ok := first[r.ICAO24]; !ok || r.Timestamp < cur.Timestamp {
			first[r.ICAO24] = r
		}
	}

	ids := make([]string, 0, len(first))
	for id := range first {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Candidate, 0, len(ids))
	for i, id := range ids {
		p := first[id]
		out = append(out, Candidate{
			ID:        fmt.Sprintf("%s%d", idPrefix, i+1),
			ICAO24:    p.ICAO24,
			Latitude:  *p.Latitude,
			Longitude: *p.Longitude,
			Timestamp: p.Timestamp,
		})
	}
	return out
}

// Deduplicate clusters candidates greedily in input order. A candidate
// closer than thresholdKm to an already accepted representative joins the
// first such cluster; otherwise it starts a new cluster and becomes its
// representative. The result depends on input order.
func Deduplicate(candidates []Candidate, thresholdKm float64) []AirportCluster {
	clusters := make([]AirportCluster, 0)
	reps := make([]LatLon, 0)

	for _, c := range candidates {
		merged := false
		for i, d := range DistancesFromPoints(c.Latitude, c.Longitude, reps) {
			if d < thresholdKm {
				clusters[i].Members++
				merged = true
				break
			}
		}
		if merged {
			continue
		}

		clusters = append(clusters, AirportCluster{
			ID:           c.ID,
			Latitude:     c.Latitude,
			Longitude:    c.Longitude,
			SourceICAO24: c.ICAO24,
			Members:      1,
		})
		reps = append(reps, LatLon{Latitude: c.Latitude, Longitude: c.Longitude})
	}

	return clusters
}

// Centroid returns the mean representative position. ok is false when there
// are no clusters.
func Centroid(clusters []AirportCluster) (lat, lon float64, ok bool) {
	if len(clusters) == 0 {
		return 0, 0, false
	}
	for _, c := range clusters {
		lat += c.Latitude
		lon += c.Longitude
	}
	n := float64(len(clusters))
	return lat / n, lon / n, true
}

// FindCluster returns the cluster with the given ID
func FindCluster(clusters []AirportCluster, id string) (AirportCluster, bool) {
	for _, c := range clusters {
		if c.ID == id {
			return c, true
		}
	}
	return AirportCluster{}, false
}
