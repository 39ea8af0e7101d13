package domain

import (
	"fmt"
	"math"
)

// Coordinate represents a WGS 84 point.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate reports ErrInvalidCoordinate for non-finite or out-of-range components.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}
