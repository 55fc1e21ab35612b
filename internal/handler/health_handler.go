package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DevNeccon/frs-video-survey/internal/config"
	"github.com/DevNeccon/frs-video-survey/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// DependencyCheck probes one backing service.
type DependencyCheck func(ctx context.Context) error

// BinaryChecker resolves an external executable, e.g. ffmpeg.LocalRunner.
type BinaryChecker interface {
	Check() (string, error)
}

// TranscoderCheck reports a missing transcoder binary as a failed dependency.
func TranscoderCheck(bin BinaryChecker) DependencyCheck {
	return func(context.Context) error {
		_, err := bin.Check()
		return err
	}
}

// HealthCheck returns a handler that reports application health. Any failing
// check turns the response into a 503.
func HealthCheck(cfg config.Config, checks map[string]DependencyCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(checks) > 0 {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()

			payload.Checks = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					payload.Checks[name] = err.Error()
					payload.Status = "degraded"
					continue
				}
				payload.Checks[name] = "ok"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
