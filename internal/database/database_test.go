package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "frs.db")

	db, err := Open(dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, table := range []any{
		&models.Survey{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
		&models.MediaFile{},
		&models.SubmissionExport{},
	} {
		require.True(t, db.Migrator().HasTable(table))
	}

	survey := models.Survey{Title: "Checkout"}
	require.NoError(t, db.Create(&survey).Error)
	submission := models.Submission{SurveyID: survey.ID, State: models.SubmissionStateStarted, StartedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&submission).Error)

	first := models.Answer{SubmissionID: submission.ID, QuestionID: 1, Response: models.AnswerYes}
	require.NoError(t, db.Create(&first).Error)
	dup := models.Answer{SubmissionID: submission.ID, QuestionID: 1, Response: models.AnswerNo}
	err = db.Create(&dup).Error
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = ConnectRedis("")
	require.Error(t, err)
}

func TestConnectNATSRequiresURL(t *testing.T) {
	_, err := ConnectNATS("", "frs")
	require.Error(t, err)
}
