package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aquaripple/aquaripple/internal/core/domain"
	"github.com/aquaripple/aquaripple/internal/core/usecases"
)

// --- Mock LocationCacheRepository ---

type mockCacheRepo struct {
	mu         sync.Mutex
	findNearFn func(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error)
	insertFn   func(ctx context.Context, entry *domain.CacheEntry) (string, error)
	findCalls  int
	inserted   []domain.CacheEntry
}

func (m *mockCacheRepo) FindNear(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error) {
	m.mu.Lock()
	m.findCalls++
	m.mu.Unlock()
	if m.findNearFn != nil {
		return m.findNearFn(ctx, point, radius)
	}
	return nil, nil
}

func (m *mockCacheRepo) Insert(ctx context.Context, entry *domain.CacheEntry) (string, error) {
	m.mu.Lock()
	m.inserted = append(m.inserted, *entry)
	m.mu.Unlock()
	if m.insertFn != nil {
		return m.insertFn(ctx, entry)
	}
	return "entry-1", nil
}

func (m *mockCacheRepo) Ping(ctx context.Context) error { return nil }
func (m *mockCacheRepo) Name() string                   { return "mock" }

// --- Mock WaterBodyResolver ---

type mockResolver struct {
	resolveFn func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, point)
	}
	return domain.ResolverResult{}, nil
}

func (m *mockResolver) Name() string { return "mock" }

// --- Mock EventPublisher ---

type mockPublisher struct {
	published []domain.CacheEntry
	err       error
}

func (m *mockPublisher) PublishWaterBodyCached(ctx context.Context, entry *domain.CacheEntry) error {
	m.published = append(m.published, *entry)
	return m.err
}

func strPtr(s string) *string { return &s }

var taupo = domain.Coordinate{Latitude: -38.68, Longitude: 176.005}

// --- Tests ---

func TestLookup_CacheHitSkipsResolver(t *testing.T) {
	repo := &mockCacheRepo{
		findNearFn: func(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error) {
			if radius != domain.DefaultCacheRadiusMeters {
				t.Errorf("expected radius %v, got %v", domain.DefaultCacheRadiusMeters, radius)
			}
			return &domain.CacheEntry{ID: "abc", Location: point, Name: strPtr("Lake Taupo")}, nil
		},
	}
	resolver := &mockResolver{}

	svc := usecases.NewLocationService(repo, resolver)
	res, err := svc.Lookup(context.Background(), taupo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsWaterBody || res.WaterBodyName == nil || *res.WaterBodyName != "Lake Taupo" {
		t.Errorf("expected Lake Taupo, got %+v", res)
	}
	if res.Message != nil {
		t.Errorf("expected no message on a hit, got %q", *res.Message)
	}
	if resolver.calls != 0 {
		t.Errorf("resolver called %d times on a cache hit", resolver.calls)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("cache hit must not insert, got %d inserts", len(repo.inserted))
	}
}

func TestLookup_MissPositiveInsertsOneEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	repo := &mockCacheRepo{}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{
				IsWater:   true,
				Name:      strPtr("Lake Taupo"),
				WaterType: strPtr("lake"),
			}, nil
		},
	}
	pub := &mockPublisher{}

	svc := usecases.NewLocationService(repo, resolver, usecases.WithClock(clock), usecases.WithPublisher(pub))
	res, err := svc.Lookup(context.Background(), taupo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsWaterBody || *res.WaterBodyName != "Lake Taupo" {
		t.Errorf("unexpected result %+v", res)
	}
	if resolver.calls != 1 {
		t.Errorf("expected exactly one resolver call, got %d", resolver.calls)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected exactly one insert, got %d", len(repo.inserted))
	}

	got := repo.inserted[0]
	if got.Location != taupo {
		t.Errorf("expected location %v, got %v", taupo, got.Location)
	}
	if got.Name == nil || *got.Name != "Lake Taupo" {
		t.Errorf("expected cached name Lake Taupo, got %v", got.Name)
	}
	if got.WaterType == nil || *got.WaterType != "lake" {
		t.Errorf("expected water type lake, got %v", got.WaterType)
	}
	if !got.CachedAt.Equal(now) {
		t.Errorf("expected cachedAt %v, got %v", now, got.CachedAt)
	}

	if len(pub.published) != 1 || pub.published[0].ID != "entry-1" {
		t.Errorf("expected one published event with store id, got %+v", pub.published)
	}
}

func TestLookup_MissNegativeNeverWrites(t *testing.T) {
	repo := &mockCacheRepo{}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{IsWater: false, Message: strPtr("not water")}, nil
		},
	}

	svc := usecases.NewLocationService(repo, resolver)
	res, err := svc.Lookup(context.Background(), domain.Coordinate{Latitude: 0, Longitude: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsWaterBody {
		t.Error("expected not a water body")
	}
	if res.WaterBodyName != nil {
		t.Errorf("expected no name, got %q", *res.WaterBodyName)
	}
	if res.Message == nil || *res.Message != "not water" {
		t.Errorf("expected resolver message, got %v", res.Message)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("negative resolution must not be cached, got %d inserts", len(repo.inserted))
	}
}

func TestLookup_ResolverFailure(t *testing.T) {
	repo := &mockCacheRepo{}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{}, errors.New("status 503")
		},
	}

	svc := usecases.NewLocationService(repo, resolver)
	_, err := svc.Lookup(context.Background(), taupo)

	var resErr *domain.ResolverError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolverError, got %v", err)
	}
	if resErr.Point != taupo {
		t.Errorf("expected error to carry %v, got %v", taupo, resErr.Point)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("resolver failure must not write, got %d inserts", len(repo.inserted))
	}
	if resolver.calls != 1 {
		t.Errorf("expected no retry, got %d resolver calls", resolver.calls)
	}
}

func TestLookup_FindNearFailure(t *testing.T) {
	repo := &mockCacheRepo{
		findNearFn: func(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error) {
			return nil, errors.New("connection refused")
		},
	}
	resolver := &mockResolver{}

	svc := usecases.NewLocationService(repo, resolver)
	_, err := svc.Lookup(context.Background(), taupo)

	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Op != "find_near" {
		t.Errorf("expected op find_near, got %s", storeErr.Op)
	}
	if resolver.calls != 0 {
		t.Error("resolver must not be called when the cache is unavailable")
	}
}

func TestLookup_InsertFailure(t *testing.T) {
	repo := &mockCacheRepo{
		insertFn: func(ctx context.Context, entry *domain.CacheEntry) (string, error) {
			return "", errors.New("disk full")
		},
	}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{IsWater: true, Name: strPtr("Lake Taupo")}, nil
		},
	}

	svc := usecases.NewLocationService(repo, resolver)
	_, err := svc.Lookup(context.Background(), taupo)

	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "insert" {
		t.Fatalf("expected insert StoreError, got %v", err)
	}
}

func TestLookup_CancelledAfterResolveDoesNotWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	repo := &mockCacheRepo{}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			cancel()
			return domain.ResolverResult{IsWater: true, Name: strPtr("Lake Taupo")}, nil
		},
	}

	svc := usecases.NewLocationService(repo, resolver)
	_, err := svc.Lookup(ctx, taupo)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		t.Errorf("skipped write must not be reported as a store failure, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("expected no write after cancellation, got %d", len(repo.inserted))
	}
}

func TestLookup_InvalidCoordinate(t *testing.T) {
	repo := &mockCacheRepo{}
	svc := usecases.NewLocationService(repo, &mockResolver{})

	_, err := svc.Lookup(context.Background(), domain.Coordinate{Latitude: 91, Longitude: 0})
	if !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if repo.findCalls != 0 {
		t.Error("store must not be queried for invalid input")
	}
}

func TestLookup_PublishFailureDoesNotFailRequest(t *testing.T) {
	repo := &mockCacheRepo{}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{IsWater: true, Name: strPtr("Lake Taupo")}, nil
		},
	}
	pub := &mockPublisher{err: errors.New("nats down")}

	svc := usecases.NewLocationService(repo, resolver, usecases.WithPublisher(pub))
	res, err := svc.Lookup(context.Background(), taupo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsWaterBody {
		t.Error("expected water body")
	}
}

func TestLookup_CustomRadius(t *testing.T) {
	var gotRadius float64
	repo := &mockCacheRepo{
		findNearFn: func(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error) {
			gotRadius = radius
			return &domain.CacheEntry{ID: "x"}, nil
		},
	}

	svc := usecases.NewLocationService(repo, &mockResolver{}, usecases.WithRadius(250))
	res, err := svc.Lookup(context.Background(), taupo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRadius != 250 {
		t.Errorf("expected radius 250, got %v", gotRadius)
	}
	if !res.IsWaterBody || res.WaterBodyName != nil {
		t.Errorf("expected nameless hit, got %+v", res)
	}
}

// Cold cache, then a nearby repeat lookup: the second request is served from the cache.
func TestLookup_ColdThenWarm(t *testing.T) {
	repo := &mockCacheRepo{}
	repo.findNearFn = func(ctx context.Context, point domain.Coordinate, radius float64) (*domain.CacheEntry, error) {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		if len(repo.inserted) == 0 {
			return nil, nil
		}
		e := repo.inserted[0]
		return &e, nil
	}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, point domain.Coordinate) (domain.ResolverResult, error) {
			return domain.ResolverResult{IsWater: true, Name: strPtr("Lake Taupo")}, nil
		},
	}

	svc := usecases.NewLocationService(repo, resolver)
	for i := 0; i < 2; i++ {
		res, err := svc.Lookup(context.Background(), taupo)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if !res.IsWaterBody || *res.WaterBodyName != "Lake Taupo" {
			t.Fatalf("lookup %d: unexpected result %+v", i, res)
		}
	}
	if resolver.calls != 1 {
		t.Errorf("expected one resolver call across both lookups, got %d", resolver.calls)
	}
	if len(repo.inserted) != 1 {
		t.Errorf("expected one cache entry, got %d", len(repo.inserted))
	}
}
