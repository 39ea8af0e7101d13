package ports

import (
	"context"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// LocationCacheRepository persists confirmed water bodies behind a geospatial index.
type LocationCacheRepository interface {
	// FindNear returns the nearest entry within radiusMeters of point, or nil if none.
	FindNear(ctx context.Context, point domain.Coordinate, radiusMeters float64) (*domain.CacheEntry, error)
	// Insert appends a new entry and returns its store-assigned ID. It never upserts.
	Insert(ctx context.Context, entry *domain.CacheEntry) (string, error)
	// Ping checks store connectivity for the readiness endpoint.
	Ping(ctx context.Context) error
	// Name identifies the backend in logs and metrics.
	Name() string
}
