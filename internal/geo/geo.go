// Package geo provides geographic coordinate types and great-circle distance math.
package geo

import (
	"math"
)

// earthRadiusMeters is the mean Earth radius used for haversine distance.
const earthRadiusMeters = 6371000.0

// Point represents a geographic point.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point lies within WGS84 coordinate bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceMeters returns the great-circle distance between two points
// using the haversine formula.
func DistanceMeters(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
