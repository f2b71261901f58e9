package geo

import (
	"math"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

const (
	earthRadiusKm = 6371.0
	// roadFactor approximates real road travel over the straight-line
	// great-circle distance.
	roadFactor = 1.3
)

// DistanceKm returns the road-adjusted distance between two coordinates in
// kilometers, rounded to one decimal place.
func DistanceKm(a, b models.Coord) float64 {
	d := Haversine(a.Lat, a.Lon, b.Lat, b.Lon) * roadFactor
	return math.Round(d*10) / 10
}

// Haversine is the raw great-circle distance in kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
