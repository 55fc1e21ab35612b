package dto

import (
	"time"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// SurveyCreateRequest is the payload for creating a draft survey.
type SurveyCreateRequest struct {
	Title string `json:"title" validate:"required,min=3,max=255"`
}

// QuestionCreateRequest appends a question to a draft survey.
type QuestionCreateRequest struct {
	QuestionText string `json:"question_text" validate:"required,min=3,max=500"`
}

// SurveyQuestionResponse serializes one question.
type SurveyQuestionResponse struct {
	ID           uint   `json:"id"`
	QuestionText string `json:"question_text"`
	Order        int    `json:"order"`
}

// SurveyResponse is returned for every survey endpoint.
type SurveyResponse struct {
	ID          uint                     `json:"id"`
	Title       string                   `json:"title"`
	IsActive    bool                     `json:"is_active"`
	PublishedAt *time.Time               `json:"published_at"`
	Questions   []SurveyQuestionResponse `json:"questions"`
}

// NewSurveyResponse converts a Survey model into a DTO.
func NewSurveyResponse(model models.Survey) SurveyResponse {
	questions := make([]SurveyQuestionResponse, 0, len(model.Questions))
	for _, q := range model.Questions {
		questions = append(questions, SurveyQuestionResponse{
			ID:           q.ID,
			QuestionText: q.Text,
			Order:        q.Order,
		})
	}

	return SurveyResponse{
		ID:          model.ID,
		Title:       model.Title,
		IsActive:    model.IsActive,
		PublishedAt: model.PublishedAt,
		Questions:   questions,
	}
}
