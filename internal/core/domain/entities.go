package domain

import (
	"time"
)

// DefaultCacheRadiusMeters is how close a cached water body must be to count as a hit.
const DefaultCacheRadiusMeters = 100.0

// UnknownWaterBodyName is used when a resolver confirms water but has no name for it.
const UnknownWaterBodyName = "Unknown Water Body"

// CacheEntry is a previously confirmed water body at a looked-up point.
// Entries are only created for positive resolutions and are never updated.
type CacheEntry struct {
	ID          string     `json:"id"`
	Location    Coordinate `json:"location"`
	Name        *string    `json:"name,omitempty"`
	WaterType   *string    `json:"water_type,omitempty"`
	Description *string    `json:"description,omitempty"`
	CachedAt    time.Time  `json:"cached_at"`
}

// LookupResult is the answer returned to API clients.
type LookupResult struct {
	IsWaterBody   bool    `json:"isWaterBody"`
	WaterBodyName *string `json:"waterBodyName"`
	Message       *string `json:"message"`
}

// WaterBodyFound builds a positive result. A nil name stays nil.
func WaterBodyFound(name *string) LookupResult {
	return LookupResult{IsWaterBody: true, WaterBodyName: name}
}

// NotWaterBody builds a negative result carrying the resolver's explanation.
func NotWaterBody(message *string) LookupResult {
	return LookupResult{IsWaterBody: false, Message: message}
}

// ResolverResult is what an external resolver reports for a point.
type ResolverResult struct {
	IsWater     bool
	Name        *string
	WaterType   *string
	Description *string
	Message     *string
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
