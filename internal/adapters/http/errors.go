package http

import "github.com/gofiber/fiber/v2"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errGatewayTimeout returns a 504 error.
func errGatewayTimeout(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusGatewayTimeout, "timeout", msg)
}

// ErrorHandler renders errors that escape handlers (unknown routes, rate
// limits, body limits) as APIError instead of fiber's plain-text default.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		msg = e.Message
	}
	return newError(c, code, codeFor(code), msg)
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusRequestTimeout:
		return "timeout"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal_error"
	}
}
