package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/observability"
)

const apiPrefix = "/api/"

// Observability records Prometheus metrics and a structured access log line
// for API routes. Health and metrics scrapes outside /api/ are ignored.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), apiPrefix) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		logRequest(logger, c, route, status, elapsed)
		return err
	}
}

func logRequest(logger zerolog.Logger, c *fiber.Ctx, route string, status int, elapsed time.Duration) {
	var event *zerolog.Event
	msg := "request completed"
	switch {
	case status >= fiber.StatusInternalServerError:
		event = logger.Error()
		msg = "request failed"
	case status >= fiber.StatusBadRequest:
		event = logger.Warn()
		msg = "request rejected"
	default:
		event = logger.Info()
	}

	event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("method", c.Method()).
		Str("route", route).
		Int("status", status).
		Dur("latency", elapsed).
		Str("latency_bucket", latencyBucket(elapsed)).
		Msg(msg)
}

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func latencyBucket(d time.Duration) string {
	switch {
	case d <= 25*time.Millisecond:
		return "<=25ms"
	case d <= 100*time.Millisecond:
		return "<=100ms"
	case d <= 500*time.Millisecond:
		return "<=500ms"
	case d <= 5*time.Second:
		return "<=5s"
	default:
		return ">5s"
	}
}
