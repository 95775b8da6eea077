package geo

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used for all great-circle distances
	EarthRadiusKm = 6371.0

	degToRad = math.Pi / 180.0
)

// Distance returns the great-circle distance in kilometres between two
// points given in degrees, using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	return haversine(dPhi, dLambda, math.Cos(lat1*degToRad), math.Cos(lat2*degToRad))
}

// DistancesFrom evaluates Distance(refLat, refLon, lat, lon) for every record,
// with the reference terms computed once. Records without a fix get NaN in
// their slot, which compares false against any radius.
func DistancesFrom(refLat, refLon float64, records []Position) []float64 {
	out := make([]float64, len(records))
	refCos := math.Cos(refLat * degToRad)

	for i, r := range records {
		lat, lon, ok := r.Coords()
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = haversine((lat-refLat)*degToRad, (lon-refLon)*degToRad, refCos, math.Cos(lat*degToRad))
	}
	return out
}

// DistancesFromPoints is DistancesFrom for plain coordinate pairs
func DistancesFromPoints(refLat, refLon float64, points []LatLon) []float64 {
	out := make([]float64, len(points))
	refCos := math.Cos(refLat * degToRad)

	for i, p := range points {
		out[i] = haversine((p.Latitude-refLat)*degToRad, (p.Longitude-refLon)*degToRad, refCos, math.Cos(p.Latitude*degToRad))
	}
	return out
}

func haversine(dPhi, dLambda, cosPhi1, cosPhi2 float64) float64 {
	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + cosPhi1*cosPhi2*sinLambda*sinLambda

	// Rounding can push a just past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// WithinRadius returns, in input order, every record whose distance to the
// reference point is at most radiusKm. Records without a fix are dropped.
func WithinRadius(records []Position, refLat, refLon, radiusKm float64) []Position {
	distances := DistancesFrom(refLat, refLon, records)

	out := make([]Position, 0, len(records))
	for i, d := range distances {
		if d <= radiusKm {
			out = append(out, records[i])
		}
	}
	return out
}
