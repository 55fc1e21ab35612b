package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/models"
	"github.com/DevNeccon/frs-video-survey/internal/repository"
)

// SurveyService manages drafting and publishing surveys.
type SurveyService interface {
	Create(ctx context.Context, payload dto.SurveyCreateRequest) (dto.SurveyResponse, error)
	Get(ctx context.Context, id uint) (dto.SurveyResponse, error)
	AddQuestion(ctx context.Context, surveyID uint, payload dto.QuestionCreateRequest) (dto.SurveyResponse, error)
	Publish(ctx context.Context, surveyID uint) (dto.SurveyResponse, error)
}

type surveyService struct {
	surveys   repository.SurveyRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
	locks     *keyedMutex
}

// NewSurveyService constructs a SurveyService instance.
func NewSurveyService(repo repository.SurveyRepository, validate *validator.Validate, logger zerolog.Logger) SurveyService {
	return &surveyService{
		surveys:   repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "survey_service").Logger(),
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
}

func (s *surveyService) Create(ctx context.Context, payload dto.SurveyCreateRequest) (dto.SurveyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SurveyResponse{}, translateValidation(err)
	}

	title := s.plainText(payload.Title)
	if title == "" {
		return dto.SurveyResponse{}, fmt.Errorf("%w: title is empty after sanitization", ErrValidation)
	}

	survey := models.Survey{Title: title}
	if err := s.surveys.Create(ctx, &survey); err != nil {
		return dto.SurveyResponse{}, err
	}

	s.logger.Info().Uint("survey_id", survey.ID).Msg("survey created")
	return dto.NewSurveyResponse(survey), nil
}

func (s *surveyService) Get(ctx context.Context, id uint) (dto.SurveyResponse, error) {
	survey, err := s.load(ctx, id)
	if err != nil {
		return dto.SurveyResponse{}, err
	}
	return dto.NewSurveyResponse(survey), nil
}

// AddQuestion appends a question with the next order number. Published
// surveys and surveys that already hold five questions are rejected.
func (s *surveyService) AddQuestion(ctx context.Context, surveyID uint, payload dto.QuestionCreateRequest) (dto.SurveyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SurveyResponse{}, translateValidation(err)
	}

	text := s.plainText(payload.QuestionText)
	if text == "" {
		return dto.SurveyResponse{}, fmt.Errorf("%w: question_text is empty after sanitization", ErrValidation)
	}

	unlock := s.locks.Lock(surveyID)
	defer unlock()

	survey, err := s.load(ctx, surveyID)
	if err != nil {
		return dto.SurveyResponse{}, err
	}
	if survey.IsPublished() {
		return dto.SurveyResponse{}, ErrSurveyPublished
	}
	if len(survey.Questions) >= models.SurveyQuestionCount {
		return dto.SurveyResponse{}, ErrSurveyFull
	}

	question := models.Question{
		SurveyID: survey.ID,
		Text:     text,
		Order:    len(survey.Questions) + 1,
	}
	if err := s.surveys.AddQuestion(ctx, &question); err != nil {
		return dto.SurveyResponse{}, err
	}

	survey.Questions = append(survey.Questions, question)
	return dto.NewSurveyResponse(survey), nil
}

// Publish activates a survey that has exactly five questions.
func (s *surveyService) Publish(ctx context.Context, surveyID uint) (dto.SurveyResponse, error) {
	unlock := s.locks.Lock(surveyID)
	defer unlock()

	survey, err := s.load(ctx, surveyID)
	if err != nil {
		return dto.SurveyResponse{}, err
	}
	if survey.IsPublished() {
		return dto.NewSurveyResponse(survey), nil
	}
	if len(survey.Questions) != models.SurveyQuestionCount {
		return dto.SurveyResponse{}, ErrSurveyQuestionCount
	}

	now := s.now().UTC()
	survey.IsActive = true
	survey.PublishedAt = &now
	if err := s.surveys.Update(ctx, &survey); err != nil {
		return dto.SurveyResponse{}, err
	}

	s.logger.Info().Uint("survey_id", survey.ID).Msg("survey published")
	return dto.NewSurveyResponse(survey), nil
}

func (s *surveyService) load(ctx context.Context, id uint) (models.Survey, error) {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Survey{}, ErrSurveyNotFound
		}
		return models.Survey{}, err
	}
	return survey, nil
}

// keyedMutex serialises work per numeric key. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint]*keyedEntry)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key uint) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// plainText strips markup and returns the remaining text unescaped. Stored
// text ends up in JSON documents, not HTML.
func (s *surveyService) plainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
}
