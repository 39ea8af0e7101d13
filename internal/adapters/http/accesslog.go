package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aquaripple/aquaripple/internal/pkg/logging"
)

// AccessLogMiddleware logs HTTP requests with structured slog output.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.String("latency", time.Since(start).String()),
			slog.Int("bytes_out", len(c.Response().Body())),
			slog.String("ip", c.IP()),
		}

		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		}

		// The request logger already carries request_id.
		logging.FromContext(c.UserContext()).LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)

		return err
	}
}
