package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDEchoesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, "abc-123", GetCorrelationID(c))
		require.Equal(t, "abc-123", CorrelationIDFromContext(c.UserContext()))
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get("X-Correlation-ID"))
}

func TestCorrelationIDGeneratesWhenMissingOrInvalid(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("x", 200))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	id := resp.Header.Get("X-Correlation-ID")
	require.Len(t, id, 36)
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/export", RateLimit("export", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/export", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/export", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestObservabilityLogsAPIRoutesOnly(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(Observability(logger))
	app.Get("/api/submissions/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Empty(t, buf.String())

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/9", nil), -1)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"route":"/api/submissions/:id"`)
	require.Contains(t, buf.String(), `"status":404`)
	require.Contains(t, buf.String(), "request rejected")
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=5s", latencyBucket(3*time.Second))
	require.Equal(t, ">5s", latencyBucket(time.Minute))
}
