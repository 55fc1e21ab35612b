package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DevNeccon/frs-video-survey/internal/config"
	"github.com/DevNeccon/frs-video-survey/internal/handler"
	"github.com/DevNeccon/frs-video-survey/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SurveyHandler     *handler.SurveyHandler
	SubmissionHandler *handler.SubmissionHandler
	HealthChecks      map[string]handler.DependencyCheck
	ExposeMetrics     bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	if deps.ExposeMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	api := app.Group("/api")

	if deps.SurveyHandler != nil {
		deps.SurveyHandler.Register(api.Group("/surveys"))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(api.Group("/submissions"))
	}
}
