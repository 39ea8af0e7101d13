package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aquaripple/aquaripple/internal/core/domain"
	"github.com/aquaripple/aquaripple/internal/core/ports"
)

// LocationLookup is the engine behind POST /api/location and the GraphQL waterBody query.
type LocationLookup interface {
	Lookup(ctx context.Context, point domain.Coordinate) (domain.LookupResult, error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Locations      LocationLookup
	Store          ports.LocationCacheRepository
	NATS           *nats.Conn
	RequestTimeout time.Duration
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout > 0 {
		return d.RequestTimeout
	}
	return 15 * time.Second
}
