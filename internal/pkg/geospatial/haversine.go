package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// Point converts a coordinate to an orb point (lon, lat order).
func Point(c domain.Coordinate) orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Distance returns the great-circle distance in meters between two coordinates.
func Distance(a, b domain.Coordinate) float64 {
	return geo.Distance(Point(a), Point(b))
}
