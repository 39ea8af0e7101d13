package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// MaxGeoLatitude is the largest absolute latitude Valkey GEO commands accept.
const MaxGeoLatitude = 85.05112878

// ErrLatitudeOutOfGeoRange is returned by Insert for points Valkey cannot index.
var ErrLatitudeOutOfGeoRange = errors.New("latitude outside valkey geo range")

func indexable(c domain.Coordinate) bool {
	return c.Latitude >= -MaxGeoLatitude && c.Latitude <= MaxGeoLatitude
}

// LocationCache implements ports.LocationCacheRepository with a Valkey geo set.
//
// Each entry is a member of <prefix>:geo keyed by its id, with attributes
// stored in the hash <prefix>:entry:<id>.
type LocationCache struct {
	client valkey.Client
	prefix string
}

// New creates a new Valkey client and location cache.
func New(addr, prefix string) (*LocationCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client valkey.Client, prefix string) *LocationCache {
	if prefix == "" {
		prefix = "aquaripple:location_cache"
	}
	return &LocationCache{client: client, prefix: prefix}
}

func (c *LocationCache) Name() string { return "valkey" }

func (c *LocationCache) geoKey() string { return c.prefix + ":geo" }

func (c *LocationCache) entryKey(id string) string { return c.prefix + ":entry:" + id }

// FindNear returns the closest entry within radiusMeters. Points beyond
// MaxGeoLatitude can never have been stored, so they are always a miss.
func (c *LocationCache) FindNear(ctx context.Context, point domain.Coordinate, radiusMeters float64) (*domain.CacheEntry, error) {
	if !indexable(point) {
		return nil, nil
	}

	cmd := c.client.B().Geosearch().Key(c.geoKey()).
		Fromlonlat(point.Longitude, point.Latitude).
		Byradius(radiusMeters).M().
		Asc().Count(1).
		Withcoord().Withdist().
		Build()

	locs, err := c.client.Do(ctx, cmd).AsGeosearch()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("geosearch: %w", err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	id := locs[0].Name
	fields, err := c.client.Do(ctx, c.client.B().Hgetall().Key(c.entryKey(id)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", id, err)
	}

	e, err := decodeEntry(id, fields)
	if err != nil {
		return nil, err
	}
	e.Location = domain.Coordinate{Latitude: locs[0].Latitude, Longitude: locs[0].Longitude}
	return e, nil
}

// Insert writes the entry hash, then adds the id to the geo set so any
// geo hit always has attributes to read. If GEOADD fails the hash is removed.
func (c *LocationCache) Insert(ctx context.Context, e *domain.CacheEntry) (string, error) {
	if !indexable(e.Location) {
		return "", fmt.Errorf("insert at %s: %w", e.Location, ErrLatitudeOutOfGeoRange)
	}

	id := uuid.NewString()

	hset := c.client.B().Hset().Key(c.entryKey(id)).FieldValue()
	for k, v := range encodeEntry(e) {
		hset = hset.FieldValue(k, v)
	}

	if err := c.client.Do(ctx, hset.Build()).Error(); err != nil {
		return "", fmt.Errorf("hset: %w", err)
	}

	geoadd := c.client.B().Geoadd().Key(c.geoKey()).
		LongitudeLatitudeMember().
		LongitudeLatitudeMember(e.Location.Longitude, e.Location.Latitude, id).
		Build()
	if err := c.client.Do(ctx, geoadd).Error(); err != nil {
		// The request context may already be done; cleanup gets its own.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if derr := c.client.Do(dctx, c.client.B().Del().Key(c.entryKey(id)).Build()).Error(); derr != nil {
			return "", fmt.Errorf("geoadd: %w (orphan %s not removed: %v)", err, c.entryKey(id), derr)
		}
		return "", fmt.Errorf("geoadd: %w", err)
	}

	return id, nil
}

// Ping checks server connectivity.
func (c *LocationCache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *LocationCache) Close() {
	c.client.Close()
}

func encodeEntry(e *domain.CacheEntry) map[string]string {
	m := map[string]string{
		"lat":       strconv.FormatFloat(e.Location.Latitude, 'f', -1, 64),
		"lon":       strconv.FormatFloat(e.Location.Longitude, 'f', -1, 64),
		"cached_at": e.CachedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Name != nil {
		m["name"] = *e.Name
	}
	if e.WaterType != nil {
		m["water_type"] = *e.WaterType
	}
	if e.Description != nil {
		m["description"] = *e.Description
	}
	return m
}

func decodeEntry(id string, m map[string]string) (*domain.CacheEntry, error) {
	e := &domain.CacheEntry{ID: id}
	var err error
	if e.Location.Latitude, err = strconv.ParseFloat(m["lat"], 64); err != nil {
		return nil, fmt.Errorf("decode %s: lat: %w", id, err)
	}
	if e.Location.Longitude, err = strconv.ParseFloat(m["lon"], 64); err != nil {
		return nil, fmt.Errorf("decode %s: lon: %w", id, err)
	}
	if e.CachedAt, err = time.Parse(time.RFC3339Nano, m["cached_at"]); err != nil {
		return nil, fmt.Errorf("decode %s: cached_at: %w", id, err)
	}
	if v, ok := m["name"]; ok {
		e.Name = &v
	}
	if v, ok := m["water_type"]; ok {
		e.WaterType = &v
	}
	if v, ok := m["description"]; ok {
		e.Description = &v
	}
	return e, nil
}
