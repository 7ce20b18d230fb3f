package httpapi

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// toHTTPError maps service errors to status codes. Unknown errors are logged
// and reported without detail.
func toHTTPError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, telemetry.ErrNoSamples):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, telemetry.ErrInvalidSample),
		errors.Is(err, telemetry.ErrInvalidQuery),
		errors.Is(err, telemetry.ErrInvalidMetric),
		errors.Is(err, telemetry.ErrGeocoderDisabled):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, telemetry.ErrLocateFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "request timed out")
	}

	logging.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
