package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/service"
	"github.com/DevNeccon/frs-video-survey/internal/utils"
	"github.com/DevNeccon/frs-video-survey/pkg/ffmpeg"
)

// writeServiceError maps a service error category onto an HTTP status.
func writeServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrState):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, ffmpeg.ErrNoSegments):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "no video segments recorded for submission")
	case errors.Is(err, ffmpeg.ErrTranscodeFailed):
		requestLogger(logger, c).Error().Err(err).Msg("transcode failed")
		return utils.SendError(c, fiber.StatusBadGateway, "video transcode failed")
	case errors.Is(err, service.ErrStorage):
		requestLogger(logger, c).Error().Err(err).Msg("storage failure")
		return utils.SendError(c, fiber.StatusInternalServerError, "storage failure")
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
