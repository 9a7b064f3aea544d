package util

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const EarthRadiusMeters = 6371000.0

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	point1 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lng1))
	point2 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat2, lng2))

	angle := s1.Angle(s2.ChordAngleBetweenPoints(point1, point2).Angle())
	return angle.Radians() * EarthRadiusMeters
}

// MetersToLatDegrees converts a north-south distance to degrees of latitude.
func MetersToLatDegrees(meters float64) float64 {
	return s1.Angle(meters / EarthRadiusMeters).Degrees()
}

// MetersToLngDegrees converts an east-west distance to degrees of longitude
// at the given latitude.
func MetersToLngDegrees(meters, latitude float64) float64 {
	cos := math.Cos(latitude * math.Pi / 180.0)
	if cos < 1e-9 {
		return 360
	}
	return MetersToLatDegrees(meters) / cos
}

// Offset moves a point by north/east meters along the local axes.
func Offset(lat, lng, northMeters, eastMeters float64) (float64, float64) {
	return lat + MetersToLatDegrees(northMeters), lng + MetersToLngDegrees(eastMeters, lat)
}
