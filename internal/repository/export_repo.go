package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// ExportRepository records published export archives.
type ExportRepository interface {
	Create(ctx context.Context, record *models.SubmissionExport) error
	Latest(ctx context.Context, submissionID uint) (models.SubmissionExport, error)
	CountBySubmission(ctx context.Context, submissionID uint) (int64, error)
}

type exportRepository struct {
	db *gorm.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *gorm.DB) ExportRepository {
	return &exportRepository{db: db}
}

func (r *exportRepository) Create(ctx context.Context, record *models.SubmissionExport) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *exportRepository) Latest(ctx context.Context, submissionID uint) (models.SubmissionExport, error) {
	var record models.SubmissionExport
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("id DESC").
		First(&record).Error; err != nil {
		return models.SubmissionExport{}, err
	}
	return record, nil
}

func (r *exportRepository) CountBySubmission(ctx context.Context, submissionID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SubmissionExport{}).Where("submission_id = ?", submissionID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
