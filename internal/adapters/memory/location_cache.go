package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aquaripple/aquaripple/internal/core/domain"
	"github.com/aquaripple/aquaripple/internal/pkg/geospatial"
)

// LocationCache is an in-process ports.LocationCacheRepository for
// development and tests. It scans every entry, so it suits small caches only.
type LocationCache struct {
	mu      sync.RWMutex
	entries []domain.CacheEntry
}

// NewLocationCache creates an empty cache.
func NewLocationCache() *LocationCache {
	return &LocationCache{}
}

func (c *LocationCache) Name() string { return "memory" }

// FindNear returns the nearest entry within radiusMeters.
func (c *LocationCache) FindNear(ctx context.Context, point domain.Coordinate, radiusMeters float64) (*domain.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best     *domain.CacheEntry
		bestDist float64
	)
	for i := range c.entries {
		e := &c.entries[i]
		d := geospatial.Distance(point, e.Location)
		if d > radiusMeters {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	if best == nil {
		return nil, nil
	}
	found := *best
	return &found, nil
}

// Insert appends a copy of e with a fresh id.
func (c *LocationCache) Insert(ctx context.Context, e *domain.CacheEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := *e
	stored.ID = uuid.NewString()

	c.mu.Lock()
	c.entries = append(c.entries, stored)
	c.mu.Unlock()

	return stored.ID, nil
}

// Len returns the number of stored entries.
func (c *LocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *LocationCache) Ping(ctx context.Context) error { return nil }
