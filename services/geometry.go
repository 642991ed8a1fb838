package services

import (
	"fmt"

	"traffic-telemetry-api/models"

	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371008.8

func validateSegment(seg models.LineString) error {
	if seg.Type != "" && seg.Type != "LineString" {
		return fmt.Errorf("expected geometry type LineString, got %q", seg.Type)
	}
	if len(seg.Coordinates) < 2 {
		return fmt.Errorf("a LineString needs at least 2 points, got %d", len(seg.Coordinates))
	}
	for i, c := range seg.Coordinates {
		if !s2.LatLngFromDegrees(c[1], c[0]).IsValid() {
			return fmt.Errorf("point %d (%v, %v) is not a valid longitude/latitude", i, c[0], c[1])
		}
	}
	return nil
}

// SegmentLength returns the geodesic length in metres of a lon/lat polyline.
func SegmentLength(seg models.LineString) float64 {
	var total float64
	for i := 1; i < len(seg.Coordinates); i++ {
		a := seg.Coordinates[i-1]
		b := seg.Coordinates[i]
		p1 := s2.LatLngFromDegrees(a[1], a[0])
		p2 := s2.LatLngFromDegrees(b[1], b[0])
		total += p1.Distance(p2).Radians() * earthRadiusMeters
	}
	return total
}
