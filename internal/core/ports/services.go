package ports

import (
	"context"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// WaterBodyResolver answers whether a point lies on a water body.
// Implementations return an error for transport failures, non-success
// statuses and malformed payloads; those are never reported as "not water".
type WaterBodyResolver interface {
	Resolve(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error)
	// Name identifies the resolver in logs, metrics and errors.
	Name() string
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishWaterBodyCached(ctx context.Context, entry *domain.CacheEntry) error
}
