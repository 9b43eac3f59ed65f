// Package geo provides great-circle distance and proximity scoring for
// venue discovery.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distance.
const EarthRadiusKm = 6371.0

// WalkMinutesPerKm is the rough walking pace used for walk time estimates.
const WalkMinutesPerKm = 12

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineKm computes the great-circle distance in kilometers between two
// points using the haversine formula.
//
// Parameters:
//   - a, b: the two coordinates
//
// Returns the distance in kilometers.
func HaversineKm(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// ProximityScore converts a distance into a [0, 1] proximity score relative
// to the requested search radius. The score is 1.0 at the requester's
// location, decays linearly, and reaches exactly 0 at twice the radius.
//
// Parameters:
//   - distanceKm: great-circle distance from the requester
//   - radiusKm: the requested search radius
//
// Returns a value in [0, 1]. Never negative.
func ProximityScore(distanceKm, radiusKm float64) float64 {
	if radiusKm <= 0 {
		return 0
	}
	score := 1.0 - distanceKm/(radiusKm*2)
	if score < 0 {
		return 0
	}
	return score
}

// WalkMinutes estimates walking time in whole minutes for a distance.
func WalkMinutes(distanceKm float64) int {
	return int(distanceKm * WalkMinutesPerKm)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
