package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/aquaripple/aquaripple/internal/pkg/metrics"
)

// SetupRoutes registers the REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 60 lookups per minute per IP. Each miss can hit a
	// public third-party API.
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/health", "/ready", "/metrics":
				return true
			}
			return false
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/health", HealthHandler(deps))
	app.Get("/ready", ReadyHandler(deps))

	// The timeout cancels the lookup context, which stops the resolver call
	// and suppresses the cache write.
	api := app.Group("/api")
	api.Post("/location", timeout.NewWithContext(LookupLocationHandler(deps), deps.requestTimeout()))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), deps.requestTimeout()))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
