package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/models"
	"github.com/DevNeccon/frs-video-survey/internal/repository"
	"github.com/DevNeccon/frs-video-survey/internal/storage"
)

var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
	webmBytes = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01, 0x42, 0x82, 0x84, 'w', 'e', 'b', 'm', 0x00, 0x00}
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "service.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Survey{},
		&models.Question{},
		&models.Submission{},
		&models.Answer{},
		&models.MediaFile{},
		&models.SubmissionExport{},
	))
	return db
}

type eventRecorder struct {
	mu     sync.Mutex
	events []SubmissionEvent
}

func (r *eventRecorder) Publish(_ context.Context, event SubmissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

type staticGeo struct {
	location string
	err      error
}

func (g staticGeo) Lookup(context.Context, string) (string, error) {
	return g.location, g.err
}

type fixture struct {
	db          *gorm.DB
	layout      storage.Layout
	surveys     repository.SurveyRepository
	submissions repository.SubmissionRepository
	answers     repository.AnswerRepository
	media       repository.MediaFileRepository
	exports     repository.ExportRepository
	events      *eventRecorder
	surveySvc   SurveyService
	lifecycle   SubmissionService
	clock       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupServiceTestDB(t)
	layout := storage.NewLayout(filepath.Join(t.TempDir(), "media"))
	return newFixtureWithLayout(t, db, layout)
}

func newFixtureWithLayout(t *testing.T, db *gorm.DB, layout storage.Layout) *fixture {
	t.Helper()
	f := &fixture{
		db:          db,
		layout:      layout,
		surveys:     repository.NewSurveyRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		answers:     repository.NewAnswerRepository(db),
		media:       repository.NewMediaFileRepository(db),
		exports:     repository.NewExportRepository(db),
		events:      &eventRecorder{},
		clock:       time.Date(2024, time.March, 9, 10, 30, 0, 0, time.UTC),
	}

	validate := validator.New()
	f.surveySvc = NewSurveyService(f.surveys, validate, testLogger())
	lifecycle := NewSubmissionService(SubmissionDeps{
		Surveys:     f.surveys,
		Submissions: f.submissions,
		Answers:     f.answers,
		Media:       f.media,
		Layout:      layout,
		Inspector:   NewClientInspector(staticGeo{location: "Netherlands"}, testLogger()),
		Events:      f.events,
		Validator:   validate,
		UploadMaxMB: 1,
	}, testLogger())
	lifecycle.(*submissionService).now = func() time.Time { return f.clock }
	f.lifecycle = lifecycle
	return f
}

// publishedSurvey creates a survey with five questions and publishes it.
func (f *fixture) publishedSurvey(t *testing.T) dto.SurveyResponse {
	t.Helper()
	ctx := context.Background()

	survey, err := f.surveySvc.Create(ctx, dto.SurveyCreateRequest{Title: "Identity check"})
	require.NoError(t, err)

	texts := []string{
		"Is this your first visit?",
		"Do you live in the city?",
		"Do you own a car?",
		"Do you work remotely?",
		"Would you recommend us?",
	}
	for _, text := range texts {
		_, err := f.surveySvc.AddQuestion(ctx, survey.ID, dto.QuestionCreateRequest{QuestionText: text})
		require.NoError(t, err)
	}

	published, err := f.surveySvc.Publish(ctx, survey.ID)
	require.NoError(t, err)
	require.True(t, published.IsActive)
	return published
}

// startedSubmission starts a submission on a fresh published survey.
func (f *fixture) startedSubmission(t *testing.T) (dto.SurveyResponse, uint) {
	t.Helper()
	survey := f.publishedSurvey(t)
	started, err := f.lifecycle.Start(context.Background(), survey.ID, dto.ClientContext{
		IPAddress: "203.0.113.7",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	require.NoError(t, err)
	return survey, started.SubmissionID
}

// answerAll records one answer per question using scores in question order.
func (f *fixture) answerAll(t *testing.T, survey dto.SurveyResponse, submissionID uint, scores []int) {
	t.Helper()
	for i, question := range survey.Questions {
		if i >= len(scores) {
			return
		}
		response := models.AnswerYes
		if i%2 == 1 {
			response = models.AnswerNo
		}
		_, err := f.lifecycle.RecordAnswer(context.Background(), submissionID, dto.AnswerCreateRequest{
			QuestionID:   question.ID,
			Answer:       response,
			FaceDetected: true,
			FaceScore:    scores[i],
		})
		require.NoError(t, err)
	}
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
