package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevNeccon/frs-video-survey/internal/config"
	"github.com/DevNeccon/frs-video-survey/internal/handler"
	"github.com/DevNeccon/frs-video-survey/pkg/ffmpeg"
)

type healthEnvelope struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "FRS Video Survey",
		AppEnv:  "test",
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, nil))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload healthEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, cfg.AppName, payload.Data.Service)
	assert.Equal(t, cfg.AppEnv, payload.Data.Environment)
	assert.Empty(t, payload.Data.Checks)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "FRS"}, map[string]handler.DependencyCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return fmt.Errorf("connection refused") },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var out healthEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "degraded", out.Data.Status)
	require.Equal(t, "ok", out.Data.Checks["database"])
	require.Equal(t, "connection refused", out.Data.Checks["redis"])
}

func TestHealthReportsMissingTranscoder(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "FRS"}, map[string]handler.DependencyCheck{
		"ffmpeg": handler.TranscoderCheck(ffmpeg.NewLocalRunner("frs-missing-ffmpeg-binary")),
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var out healthEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "degraded", out.Data.Status)
	require.Contains(t, out.Data.Checks["ffmpeg"], "frs-missing-ffmpeg-binary")
}

func TestHealthPassesWithResolvableTranscoder(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "FRS"}, map[string]handler.DependencyCheck{
		"ffmpeg": handler.TranscoderCheck(ffmpeg.NewLocalRunner(self)),
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
