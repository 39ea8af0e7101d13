package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers unless the handler already did.
// Lookup results are never cached by intermediaries: the service keeps its own
// geospatial cache and a negative answer may change once a nearby water body is cached.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case strings.HasPrefix(path, "/api/") || path == "/graphql":
			ttl = "no-store"
		case path == "/health" || path == "/ready":
			ttl = "no-cache"
		case path == "/metrics":
			ttl = "no-cache"
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
