package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/service"
	"github.com/DevNeccon/frs-video-survey/internal/utils"
)

// SubmissionHandler manages submission lifecycle and export endpoints.
type SubmissionHandler struct {
	service     service.SubmissionService
	exports     service.ExportService
	exportLimit fiber.Handler
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance. exportLimit may
// be nil.
func NewSubmissionHandler(service service.SubmissionService, exports service.ExportService, exportLimit fiber.Handler, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:     service,
		exports:     exports,
		exportLimit: exportLimit,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Post("/:id/answers", h.recordAnswer)
	router.Post("/:id/media", h.uploadMedia)
	router.Post("/:id/complete", h.complete)

	if h.exportLimit != nil {
		router.Get("/:id/export", h.exportLimit, h.export)
	} else {
		router.Get("/:id/export", h.export)
	}
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission deleted", nil)
}

func (h *SubmissionHandler) recordAnswer(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AnswerCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", fiber.Map{"error": err.Error()})
	}

	answer, err := h.service.RecordAnswer(c.UserContext(), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "answer recorded", answer)
}

func (h *SubmissionHandler) uploadMedia(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	payload := dto.MediaUploadRequest{
		Kind:     c.FormValue("kind"),
		FileName: c.FormValue("filename"),
	}
	if payload.FileName == "" {
		payload.FileName = file.Filename
	}

	media, err := h.service.UploadMedia(c.UserContext(), id, payload, file)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "media stored", media)
}

func (h *SubmissionHandler) complete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	completed, err := h.service.Complete(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission completed", completed)
}

func (h *SubmissionHandler) export(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.exports.Export(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("submission_id", id).
		Int64("size_bytes", result.SizeBytes).
		Str("checksum", result.Checksum).
		Msg("export served")

	c.Set("X-Export-Checksum", result.Checksum)
	c.Set("X-Export-Entries", strconv.Itoa(len(result.Entries)))
	if err := c.Download(result.Path, result.FileName); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/zip")
	return nil
}
