package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/aquaripple/aquaripple/internal/adapters/http"
	natsadapter "github.com/aquaripple/aquaripple/internal/adapters/nats"
	"github.com/aquaripple/aquaripple/internal/core/usecases"
	"github.com/aquaripple/aquaripple/internal/pkg/config"
	"github.com/aquaripple/aquaripple/internal/pkg/logging"
	"github.com/aquaripple/aquaripple/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("aquaripple-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Location cache store
	sh, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store %s: %v", cfg.Store.Driver, err)
	}
	defer sh.close()
	store := sh.repo
	slog.Info("location cache ready", "driver", store.Name(), "radius_m", cfg.Store.RadiusMeters)

	// Water body resolver
	resolver, err := newResolver(cfg)
	if err != nil {
		log.Fatalf("resolver %s: %v", cfg.Resolver.Kind, err)
	}
	slog.Info("resolver ready", "kind", resolver.Name(), "timeout", cfg.Resolver.Timeout)

	opts := []usecases.Option{usecases.WithRadius(cfg.Store.RadiusMeters)}

	// NATS (optional): cache events plus the WebSocket relay
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, water body events disabled", "error", err)
		} else {
			defer pub.Close()
			opts = append(opts, usecases.WithPublisher(pub))
			natsConn = pub.Conn()
		}
	}

	deps := &http.Dependencies{
		Locations:      usecases.NewLocationService(store, resolver, opts...),
		Store:          store,
		NATS:           natsConn,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "AquaRipple API",
		ErrorHandler: http.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	if sh.pool != nil {
		go reportPoolStats(ctx, sh.pool)
	}

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
