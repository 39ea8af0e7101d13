package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaripple/aquaripple/internal/adapters/analytics"
	"github.com/aquaripple/aquaripple/internal/adapters/anthropic"
	"github.com/aquaripple/aquaripple/internal/adapters/memory"
	mongoadapter "github.com/aquaripple/aquaripple/internal/adapters/mongo"
	"github.com/aquaripple/aquaripple/internal/adapters/overpass"
	"github.com/aquaripple/aquaripple/internal/adapters/postgres"
	"github.com/aquaripple/aquaripple/internal/adapters/valkey"
	"github.com/aquaripple/aquaripple/internal/core/ports"
	"github.com/aquaripple/aquaripple/internal/pkg/config"
	"github.com/aquaripple/aquaripple/internal/pkg/metrics"
)

// storeHandle is an opened cache backend. pool is set only for postgres.
type storeHandle struct {
	repo  ports.LocationCacheRepository
	close func()
	pool  *pgxpool.Pool
}

// openStore connects the configured cache backend.
func openStore(ctx context.Context, cfg *config.Config) (*storeHandle, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		return &storeHandle{repo: postgres.NewLocationCacheRepo(db.Pool), close: db.Close, pool: db.Pool}, nil

	case config.StoreMongo:
		client, err := mongoadapter.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		store, err := mongoadapter.NewLocationCache(ctx, coll)
		if err != nil {
			closeFn()
			return nil, err
		}
		return &storeHandle{repo: store, close: closeFn}, nil

	case config.StoreValkey:
		store, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return &storeHandle{repo: store, close: store.Close}, nil

	case config.StoreMemory:
		slog.Warn("using in-memory location cache, entries are lost on restart")
		return &storeHandle{repo: memory.NewLocationCache(), close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newResolver(cfg *config.Config) (ports.WaterBodyResolver, error) {
	switch cfg.Resolver.Kind {
	case config.ResolverOverpass:
		return overpass.NewClient(cfg.Resolver.Timeout,
			overpass.WithBaseURL(cfg.Overpass.BaseURL),
			overpass.WithUserAgent(cfg.Overpass.UserAgent),
			overpass.WithRateLimit(cfg.Overpass.RatePerSecond),
		), nil

	case config.ResolverAnalytics:
		return analytics.NewClient(cfg.Analytics.BaseURL, cfg.Resolver.Timeout), nil

	case config.ResolverAnthropic:
		return anthropic.NewResolver(cfg.Anthropic.APIKey,
			[]option.RequestOption{option.WithRequestTimeout(cfg.Resolver.Timeout)},
			anthropic.WithModel(cfg.Anthropic.Model),
			anthropic.WithMaxTokens(cfg.Anthropic.MaxTokens),
		), nil
	}
	return nil, fmt.Errorf("unknown resolver kind %q", cfg.Resolver.Kind)
}

// reportPoolStats refreshes connection pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(pool.Stat())
		}
	}
}
