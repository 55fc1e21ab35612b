package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// MediaFileRepository persists metadata about uploaded media artifacts.
type MediaFileRepository interface {
	Create(ctx context.Context, record *models.MediaFile) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.MediaFile, error)
}

type mediaFileRepository struct {
	db *gorm.DB
}

// NewMediaFileRepository constructs a repository for media records.
func NewMediaFileRepository(db *gorm.DB) MediaFileRepository {
	return &mediaFileRepository{db: db}
}

func (r *mediaFileRepository) Create(ctx context.Context, record *models.MediaFile) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *mediaFileRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.MediaFile, error) {
	var files []models.MediaFile
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("type ASC").Order("question_index ASC").Order("id ASC").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
