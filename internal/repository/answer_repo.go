package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// AnswerRepository persists per-question answers.
type AnswerRepository interface {
	Create(ctx context.Context, answer *models.Answer) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Answer, error)
	Exists(ctx context.Context, submissionID, questionID uint) (bool, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository constructs the repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) Create(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Create(answer).Error
}

func (r *answerRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) Exists(ctx context.Context, submissionID, questionID uint) (bool, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	return total > 0, nil
}
