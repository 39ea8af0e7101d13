package http

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/aquaripple/aquaripple/internal/core/domain"
	"github.com/aquaripple/aquaripple/internal/pkg/logging"
)

// LocationRequest is the body of POST /api/location.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LookupLocationHandler reports whether the posted point lies on a water body.
func LookupLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LocationRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "request body must be JSON: {\"latitude\": number, \"longitude\": number}")
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errBadRequest(c, "latitude and longitude are required")
		}

		point := domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if err := point.Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}

		ctx := c.UserContext()
		res, err := deps.Locations.Lookup(ctx, point)
		if err != nil {
			return lookupError(c, ctx, err)
		}

		return c.JSON(res)
	}
}

// lookupError maps engine failures to responses without leaking internals.
func lookupError(c *fiber.Ctx, ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return errBadRequest(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errGatewayTimeout(c, "location lookup timed out")
	default:
		logging.FromContext(ctx).Debug("lookup failed", "error", err)
		return errInternal(c, "failed to look up location")
	}
}
