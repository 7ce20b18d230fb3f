package httpapi

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// NewApp builds the Fiber app with the centralized error handler, the
// middleware stack and all routes.
func NewApp(service *telemetry.Service, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "meshcore-heatmap",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		BodyLimit:             8 * 1024 * 1024,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	})

	UseMiddleware(app)
	RegisterRoutes(app, service, opts)
	return app
}
