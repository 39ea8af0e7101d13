package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/aquaripple/aquaripple/internal/pkg/logging"
)

// RequestIDLogMiddleware stores a request-scoped *slog.Logger carrying the
// Fiber request ID in the user context, where the lookup engine and
// adapters pick it up via logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ridStr, ok := c.Locals("requestid").(string)
		if !ok || ridStr == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", ridStr)
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))

		return c.Next()
	}
}
