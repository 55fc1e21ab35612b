package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/service"
	"github.com/DevNeccon/frs-video-survey/internal/utils"
)

// SurveyHandler manages survey authoring and session start endpoints.
type SurveyHandler struct {
	surveys     service.SurveyService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewSurveyHandler builds a survey handler instance.
func NewSurveyHandler(surveys service.SurveyService, submissions service.SubmissionService, logger zerolog.Logger) *SurveyHandler {
	return &SurveyHandler{
		surveys:     surveys,
		submissions: submissions,
		logger:      logger.With().Str("component", "survey_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SurveyHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Post("/:id/questions", h.addQuestion)
	router.Post("/:id/publish", h.publish)
	router.Post("/:id/start", h.start)
}

func (h *SurveyHandler) create(c *fiber.Ctx) error {
	var payload dto.SurveyCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", fiber.Map{"error": err.Error()})
	}

	survey, err := h.surveys.Create(c.UserContext(), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "survey created", survey)
}

func (h *SurveyHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	survey, err := h.surveys.Get(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "survey retrieved", survey)
}

func (h *SurveyHandler) addQuestion(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body", fiber.Map{"error": err.Error()})
	}

	survey, err := h.surveys.AddQuestion(c.UserContext(), id, payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question added", survey)
}

func (h *SurveyHandler) publish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	survey, err := h.surveys.Publish(c.UserContext(), id)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "survey published", survey)
}

func (h *SurveyHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	client := dto.ClientContext{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}

	started, err := h.submissions.Start(c.UserContext(), id, client)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("survey_id", id).
		Uint("submission_id", started.SubmissionID).
		Msg("submission started")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission started", started)
}
