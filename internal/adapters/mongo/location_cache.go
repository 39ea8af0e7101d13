package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// geoJSONPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type locationDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Location    geoJSONPoint       `bson:"location"`
	Name        *string            `bson:"name,omitempty"`
	WaterType   *string            `bson:"water_type,omitempty"`
	Description *string            `bson:"description,omitempty"`
	CachedAt    time.Time          `bson:"cached_at"`
}

func pointOf(c domain.Coordinate) geoJSONPoint {
	return geoJSONPoint{Type: "Point", Coordinates: []float64{c.Longitude, c.Latitude}}
}

func toDoc(e *domain.CacheEntry) locationDoc {
	return locationDoc{
		Location:    pointOf(e.Location),
		Name:        e.Name,
		WaterType:   e.WaterType,
		Description: e.Description,
		CachedAt:    e.CachedAt,
	}
}

func (d locationDoc) entry() *domain.CacheEntry {
	e := &domain.CacheEntry{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		WaterType:   d.WaterType,
		Description: d.Description,
		CachedAt:    d.CachedAt.UTC(),
	}
	if len(d.Location.Coordinates) == 2 {
		e.Location = domain.Coordinate{Latitude: d.Location.Coordinates[1], Longitude: d.Location.Coordinates[0]}
	}
	return e
}

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// LocationCache implements ports.LocationCacheRepository on a MongoDB
// collection with a 2dsphere index on location.
type LocationCache struct {
	coll *mongo.Collection
}

// NewLocationCache ensures the geospatial index exists and returns the store.
func NewLocationCache(ctx context.Context, coll *mongo.Collection) (*LocationCache, error) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create 2dsphere index: %w", err)
	}
	return &LocationCache{coll: coll}, nil
}

func (c *LocationCache) Name() string { return "mongo" }

// FindNear uses $nearSphere, which sorts by distance, so the first match is the nearest.
func (c *LocationCache) FindNear(ctx context.Context, point domain.Coordinate, radiusMeters float64) (*domain.CacheEntry, error) {
	filter := bson.D{{Key: "location", Value: bson.D{{Key: "$nearSphere", Value: bson.D{
		{Key: "$geometry", Value: pointOf(point)},
		{Key: "$maxDistance", Value: radiusMeters},
	}}}}}

	var doc locationDoc
	err := c.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	return doc.entry(), nil
}

// Insert appends a new document.
func (c *LocationCache) Insert(ctx context.Context, e *domain.CacheEntry) (string, error) {
	res, err := c.coll.InsertOne(ctx, toDoc(e))
	if err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// Ping checks server connectivity.
func (c *LocationCache) Ping(ctx context.Context) error {
	return c.coll.Database().Client().Ping(ctx, readpref.Primary())
}
