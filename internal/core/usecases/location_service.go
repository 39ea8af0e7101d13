package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquaripple/aquaripple/internal/core/domain"
	"github.com/aquaripple/aquaripple/internal/core/ports"
	"github.com/aquaripple/aquaripple/internal/pkg/logging"
	"github.com/aquaripple/aquaripple/internal/pkg/metrics"
	"github.com/aquaripple/aquaripple/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/aquaripple/aquaripple/internal/core/usecases")

// LocationService resolves points to water bodies, consulting the
// location cache before the external resolver.
type LocationService struct {
	cache     ports.LocationCacheRepository
	resolver  ports.WaterBodyResolver
	publisher ports.EventPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	radius    float64
}

// Option configures a LocationService.
type Option func(*LocationService)

// WithRadius overrides the cache hit radius in meters.
func WithRadius(meters float64) Option {
	return func(s *LocationService) {
		if meters > 0 {
			s.radius = meters
		}
	}
}

// WithClock sets the clock used for CachedAt timestamps and resolver timings.
func WithClock(c clockwork.Clock) Option {
	return func(s *LocationService) { s.clock = c }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *LocationService) { s.logger = l }
}

// WithPublisher announces newly cached water bodies.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *LocationService) { s.publisher = p }
}

// NewLocationService creates a new LocationService.
func NewLocationService(cache ports.LocationCacheRepository, resolver ports.WaterBodyResolver, opts ...Option) *LocationService {
	s := &LocationService{
		cache:    cache,
		resolver: resolver,
		clock:    clockwork.NewRealClock(),
		radius:   domain.DefaultCacheRadiusMeters,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup reports whether point lies on a water body.
//
// A cached entry within the configured radius answers immediately. Otherwise
// the resolver is asked once; only positive answers are written back. Store
// and resolver failures are returned as *domain.StoreError and
// *domain.ResolverError without retry.
func (s *LocationService) Lookup(ctx context.Context, point domain.Coordinate) (domain.LookupResult, error) {
	ctx, span := tracer.Start(ctx, "LocationService.Lookup", trace.WithAttributes(
		telemetry.AttrLatitude.Float64(point.Latitude),
		telemetry.AttrLongitude.Float64(point.Longitude),
		telemetry.AttrResolver.String(s.resolver.Name()),
	))
	defer span.End()

	log := s.log(ctx).With("lat", point.Latitude, "lon", point.Longitude)

	if err := point.Validate(); err != nil {
		return domain.LookupResult{}, err
	}

	hit, err := s.cache.FindNear(ctx, point, s.radius)
	if err != nil {
		return s.fail(span, log, &domain.StoreError{Op: "find_near", Point: point, Err: err})
	}
	if hit != nil {
		metrics.CacheHits.WithLabelValues(s.cache.Name()).Inc()
		s.finish(span, metrics.OutcomeCacheHit)
		log.Info("location cache hit", "entry_id", hit.ID)
		return domain.WaterBodyFound(hit.Name), nil
	}
	metrics.CacheMisses.WithLabelValues(s.cache.Name()).Inc()

	start := s.clock.Now()
	res, err := s.resolver.Resolve(ctx, point)
	metrics.ResolverDuration.WithLabelValues(s.resolver.Name()).Observe(s.clock.Since(start).Seconds())
	if err != nil {
		metrics.ResolverErrors.WithLabelValues(s.resolver.Name()).Inc()
		return s.fail(span, log, &domain.ResolverError{Resolver: s.resolver.Name(), Point: point, Err: err})
	}

	if !res.IsWater {
		s.finish(span, metrics.OutcomeNotWater)
		return domain.NotWaterBody(res.Message), nil
	}

	// The client may have gone away while the resolver was working.
	// Nothing was written, so this is not a store failure.
	if err := ctx.Err(); err != nil {
		return s.fail(span, log, fmt.Errorf("lookup at %s abandoned before caching: %w", point, err))
	}

	entry := &domain.CacheEntry{
		Location:    point,
		Name:        res.Name,
		WaterType:   res.WaterType,
		Description: res.Description,
		CachedAt:    s.clock.Now().UTC(),
	}
	id, err := s.cache.Insert(ctx, entry)
	if err != nil {
		return s.fail(span, log, &domain.StoreError{Op: "insert", Point: point, Err: err})
	}
	entry.ID = id
	metrics.CacheInserts.WithLabelValues(s.cache.Name()).Inc()
	span.SetAttributes(telemetry.AttrEntryID.String(id))

	if s.publisher != nil {
		if err := s.publisher.PublishWaterBodyCached(ctx, entry); err != nil {
			log.Warn("publish water body cached", "entry_id", id, "error", err)
		}
	}

	s.finish(span, metrics.OutcomeWater)
	return domain.WaterBodyFound(res.Name), nil
}

func (s *LocationService) fail(span trace.Span, log *slog.Logger, err error) (domain.LookupResult, error) {
	metrics.LookupsTotal.WithLabelValues(metrics.OutcomeError).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("location lookup failed", "error", err)
	return domain.LookupResult{}, err
}

func (s *LocationService) finish(span trace.Span, outcome string) {
	metrics.LookupsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(telemetry.AttrOutcome.String(outcome))
}

func (s *LocationService) log(ctx context.Context) *slog.Logger {
	if l, ok := logging.LoggerFrom(ctx); ok {
		return l
	}
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
