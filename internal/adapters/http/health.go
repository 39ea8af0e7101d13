package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler checks cache store and NATS connectivity.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Location cache store
		if deps.Store != nil {
			if err := deps.Store.Ping(ctx); err != nil {
				checks[deps.Store.Name()] = "error: " + err.Error()
				allOK = false
			} else {
				checks[deps.Store.Name()] = "ok"
			}
		} else {
			checks["store"] = "not configured"
			allOK = false
		}

		// NATS is optional; a configured but disconnected broker only degrades events.
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
			}
		} else {
			checks["nats"] = "not configured"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
