package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// SurveyRepository defines persistence operations for surveys and their questions.
type SurveyRepository interface {
	Create(ctx context.Context, survey *models.Survey) error
	GetByID(ctx context.Context, id uint) (models.Survey, error)
	Update(ctx context.Context, survey *models.Survey) error
	AddQuestion(ctx context.Context, question *models.Question) error
}

type surveyRepository struct {
	db *gorm.DB
}

// NewSurveyRepository instantiates a GORM-backed repository.
func NewSurveyRepository(db *gorm.DB) SurveyRepository {
	return &surveyRepository{db: db}
}

func (r *surveyRepository) Create(ctx context.Context, survey *models.Survey) error {
	return r.db.WithContext(ctx).Create(survey).Error
}

// GetByID loads the survey with its questions in ascending order.
func (r *surveyRepository) GetByID(ctx context.Context, id uint) (models.Survey, error) {
	var survey models.Survey
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		First(&survey, id).Error
	if err != nil {
		return models.Survey{}, err
	}

	return survey, nil
}

func (r *surveyRepository) Update(ctx context.Context, survey *models.Survey) error {
	return r.db.WithContext(ctx).Omit("Questions").Save(survey).Error
}

func (r *surveyRepository) AddQuestion(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}
