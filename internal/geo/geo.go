// Package geo computes great-circle distances between coordinates.
package geo

import "math"

const EarthRadiusMeters = 6_371_000.0

type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether c lies within the WGS84 latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b Coordinate) float64 {
	p1, p2 := toRad(a.Lat), toRad(b.Lat)
	dp, dl := toRad(b.Lat-a.Lat), toRad(b.Lng-a.Lng)

	h := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	if h > 1 {
		h = 1
	}
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Round2 rounds meters to two decimals for display.
func Round2(meters float64) float64 {
	return math.Round(meters*100) / 100
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
