package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/meshcore-heatmap/internal/heatmap"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// Options carries the page settings and the database URL reported by /health.
type Options struct {
	Heatmap heatmap.Settings
	// DatabaseURL must already be redacted.
	DatabaseURL string
}

const (
	dashboardRefreshMs = 30000
	fullRefreshMs      = 60000
	healthTimeout      = 2 * time.Second
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *telemetry.Service, opts Options) {
	app.Post("/ping-samples", func(c *fiber.Ctx) error {
		var in telemetry.SampleInput
		if err := decodeJSON(c, &in); err != nil {
			return err
		}

		sample, err := service.Ingest(c.UserContext(), in)
		if err != nil {
			return toHTTPError(c, err)
		}
		return writeJSON(c, fiber.StatusCreated, sample)
	})

	app.Post("/ping-samples/bulk", func(c *fiber.Ctx) error {
		var in []telemetry.SampleInput
		if err := decodeJSON(c, &in); err != nil {
			return err
		}

		samples, err := service.IngestBatch(c.UserContext(), in)
		if err != nil {
			return toHTTPError(c, err)
		}
		return writeJSON(c, fiber.StatusCreated, samples)
	})

	app.Get("/ping-samples/recent", func(c *fiber.Ctx) error {
		limit, ok, err := intQuery(c, "limit")
		if err == nil && ok && limit < 1 {
			err = errors.New("limit must be between 1 and 500")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		samples, err := service.Recent(c.UserContext(), limit)
		if err != nil {
			return toHTTPError(c, err)
		}
		return writeJSON(c, fiber.StatusOK, samples)
	})

	app.Get("/heatmap", func(c *fiber.Ctx) error {
		q, err := parseHeatmapQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		resp, err := service.Heatmap(c.UserContext(), q)
		if err != nil {
			return toHTTPError(c, err)
		}
		return writeJSON(c, fiber.StatusOK, resp)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()

		status := "ok"
		if err := service.Ping(ctx); err != nil {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":   status,
			"database": opts.DatabaseURL,
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return heatmap.Dashboard(c, heatmap.DashboardOptions{
			Settings:       opts.Heatmap,
			FiltersEnabled: true,
			AutoRefreshMs:  dashboardRefreshMs,
		})
	})

	app.Get("/heatmap/full", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return heatmap.Dashboard(c, heatmap.DashboardOptions{
			Settings:      opts.Heatmap,
			AutoRefreshMs: fullRefreshMs,
		})
	})

	app.Get("/ingest", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return heatmap.IngestConsole(c, opts.Heatmap)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// decodeJSON decodes the request body with the app's JSON decoder.
func decodeJSON(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "request body is empty")
	}
	if err := c.App().Config().JSONDecoder(body, v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed JSON: "+err.Error())
	}
	return nil
}

// writeJSON encodes v with the given status. Encoding failures go through
// toHTTPError so their detail stays in the log.
func writeJSON(c *fiber.Ctx, status int, v any) error {
	if err := c.Status(status).JSON(v); err != nil {
		return toHTTPError(c, err)
	}
	return nil
}

func intQuery(c *fiber.Ctx, key string) (int, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, errors.New(key + " must be an integer")
	}
	return n, true, nil
}

func floatQuery(c *fiber.Ctx, key string) (float64, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.New(key + " must be a number")
	}
	return f, true, nil
}

var bboxKeys = [4]string{"min_lat", "max_lat", "min_lon", "max_lon"}

// parseHeatmapQuery reads the heatmap filters. Range checks are left to the
// service; only type errors are reported here.
func parseHeatmapQuery(c *fiber.Ctx) (telemetry.HeatmapQuery, error) {
	q := telemetry.HeatmapQuery{
		Metric:        telemetry.DefaultMetric,
		HardwareModel: c.Query("hardware_model"),
		AntennaModel:  c.Query("antenna_model"),
		Near:          c.Query("near"),
	}

	// An explicit empty metric is rejected; only an absent one defaults.
	if c.Context().QueryArgs().Has("metric") {
		q.Metric = telemetry.Metric(strings.TrimSpace(c.Query("metric")))
		if q.Metric == "" {
			return q, errors.New("metric must be one of rssi_dbm, snr_db, round_trip_ms")
		}
	}

	hours, ok, err := intQuery(c, "hours")
	if err != nil {
		return q, err
	}
	if ok && hours < 1 {
		return q, errors.New("hours must be between 1 and 168")
	}
	q.Hours = hours

	if q.RadiusKm, _, err = floatQuery(c, "radius_km"); err != nil {
		return q, err
	}

	var box [4]float64
	present := 0
	for i, key := range bboxKeys {
		v, ok, err := floatQuery(c, key)
		if err != nil {
			return q, err
		}
		if ok {
			box[i] = v
			present++
		}
	}
	switch present {
	case 0:
	case len(bboxKeys):
		q.Bounds = &telemetry.BoundingBox{MinLat: box[0], MaxLat: box[1], MinLon: box[2], MaxLon: box[3]}
	default:
		return q, errors.New("min_lat, max_lat, min_lon and max_lon must be given together")
	}
	return q, nil
}
