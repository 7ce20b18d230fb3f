package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/meshcore-heatmap/internal/logging"
	"github.com/i474232898/meshcore-heatmap/internal/metrics"
)

// UseMiddleware installs request ids, request logging with metrics, and
// panic recovery, in that order.
func UseMiddleware(app *fiber.App) {
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(requestLogger)
	app.Use(recover.New())
}

// requestLogger attaches the request id to the user context, then logs and
// counts the request once the chain (including error rendering) is done.
func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	c.SetUserContext(logging.ContextWithRequestID(c.UserContext(), id))

	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	elapsed := time.Since(start)

	metrics.APIRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	metrics.APIRequestDuration.WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())

	event := logging.Ctx(c.UserContext()).Info()
	if status >= fiber.StatusInternalServerError {
		event = logging.Ctx(c.UserContext()).Error()
	}
	event.
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", elapsed).
		Msg("request")
	return nil
}
