package utils

import (
	"math"
	"time"
)

// EarthRadiusKm is the mean Earth radius used for distances
const EarthRadiusKm = 6371.0

// Location represents a geographical coordinate
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationFrom builds a Location from nullable coordinates.
// ok is false unless both are present.
func LocationFrom(lat, lng *float64) (Location, bool) {
	if lat == nil || lng == nil {
		return Location{}, false
	}
	return Location{Latitude: *lat, Longitude: *lng}, true
}

// HaversineDistance calculates the great-circle distance between two points.
// Returns distance in kilometers.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	// rounding can push a slightly above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance returns the kilometers between two locations
func (l Location) Distance(other Location) float64 {
	return HaversineDistance(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// CalculateETA estimates the travel time between two points at averageSpeed km/h.
// This is a straight-line estimate, not a routed one.
func CalculateETA(from, to Location, averageSpeed float64) time.Duration {
	if averageSpeed <= 0 {
		return 0
	}
	timeHours := from.Distance(to) / averageSpeed
	timeMinutes := int(math.Ceil(timeHours * 60))

	return time.Duration(timeMinutes) * time.Minute
}

// IsLocationValid checks if the provided coordinates are valid
func IsLocationValid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IsLocationRecent checks if the location was updated within maxAge of now
func IsLocationRecent(lastUpdate *time.Time, maxAge time.Duration, now time.Time) bool {
	if lastUpdate == nil {
		return false
	}
	return now.Sub(*lastUpdate) <= maxAge
}
