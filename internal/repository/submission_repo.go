package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Answers", "MediaFiles", "Exports").Save(submission).Error
}

// Delete removes the submission together with its answers, media rows and
// export records. Children are deleted explicitly so that sqlite databases
// without foreign key enforcement end up in the same state as postgres.
func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.MediaFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&models.SubmissionExport{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
