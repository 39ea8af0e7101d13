package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// Querier is the subset of pgxpool.Pool used by LocationCacheRepo.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// LocationCacheRepo implements ports.LocationCacheRepository on PostGIS.
type LocationCacheRepo struct {
	db Querier
}

// NewLocationCacheRepo creates a new LocationCacheRepo.
func NewLocationCacheRepo(db Querier) *LocationCacheRepo {
	return &LocationCacheRepo{db: db}
}

func (r *LocationCacheRepo) Name() string { return "postgres" }

// FindNear returns the closest cached water body within radiusMeters.
func (r *LocationCacheRepo) FindNear(ctx context.Context, point domain.Coordinate, radiusMeters float64) (*domain.CacheEntry, error) {
	var (
		e        domain.CacheEntry
		distance float64
	)
	err := r.db.QueryRow(ctx, `
		SELECT id::text, ST_Y(location::geometry), ST_X(location::geometry),
		       name, water_type, description, cached_at,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM location_cache
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT 1
	`, point.Longitude, point.Latitude, radiusMeters).Scan(
		&e.ID, &e.Location.Latitude, &e.Location.Longitude,
		&e.Name, &e.WaterType, &e.Description, &e.CachedAt, &distance,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	return &e, nil
}

// Insert appends a cache entry and returns the generated id.
func (r *LocationCacheRepo) Insert(ctx context.Context, e *domain.CacheEntry) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO location_cache (location, name, water_type, description, cached_at)
		VALUES (ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, $4, $5, $6)
		RETURNING id::text
	`, e.Location.Longitude, e.Location.Latitude, e.Name, e.WaterType, e.Description, e.CachedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	return id, nil
}

// Ping checks database connectivity.
func (r *LocationCacheRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
