package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/models"
	"github.com/DevNeccon/frs-video-survey/internal/observability"
	"github.com/DevNeccon/frs-video-survey/internal/repository"
	"github.com/DevNeccon/frs-video-survey/internal/scoring"
	"github.com/DevNeccon/frs-video-survey/internal/storage"
)

const defaultUploadMaxMB = 50

// SubmissionService drives the submission lifecycle: start, answer, upload
// media, complete.
type SubmissionService interface {
	Start(ctx context.Context, surveyID uint, client dto.ClientContext) (dto.SubmissionStartResponse, error)
	RecordAnswer(ctx context.Context, submissionID uint, payload dto.AnswerCreateRequest) (dto.AnswerResponse, error)
	UploadMedia(ctx context.Context, submissionID uint, payload dto.MediaUploadRequest, file *multipart.FileHeader) (dto.MediaUploadResponse, error)
	Complete(ctx context.Context, submissionID uint) (dto.CompleteResponse, error)
	Get(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, submissionID uint) error
}

// SubmissionDeps groups the collaborators of the submission service.
type SubmissionDeps struct {
	Surveys     repository.SurveyRepository
	Submissions repository.SubmissionRepository
	Answers     repository.AnswerRepository
	Media       repository.MediaFileRepository
	Layout      storage.Layout
	Inspector   ClientInspector
	Events      EventPublisher
	Validator   *validator.Validate
	UploadMaxMB int
}

type submissionService struct {
	surveys     repository.SurveyRepository
	submissions repository.SubmissionRepository
	answers     repository.AnswerRepository
	media       repository.MediaFileRepository
	layout      storage.Layout
	inspector   ClientInspector
	events      EventPublisher
	validator   *validator.Validate
	maxUpload   int64
	logger      zerolog.Logger
	now         func() time.Time
	locks       *keyedMutex
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(deps SubmissionDeps, logger zerolog.Logger) SubmissionService {
	if deps.UploadMaxMB <= 0 {
		deps.UploadMaxMB = defaultUploadMaxMB
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Inspector == nil {
		deps.Inspector = NewClientInspector(nil, logger)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	return &submissionService{
		surveys:     deps.Surveys,
		submissions: deps.Submissions,
		answers:     deps.Answers,
		media:       deps.Media,
		layout:      deps.Layout,
		inspector:   deps.Inspector,
		events:      deps.Events,
		validator:   deps.Validator,
		maxUpload:   int64(deps.UploadMaxMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
		locks:       newKeyedMutex(),
	}
}

// Start opens a submission against a published survey and provisions its
// media directories. A directory failure rolls the row back.
func (s *submissionService) Start(ctx context.Context, surveyID uint, client dto.ClientContext) (dto.SubmissionStartResponse, error) {
	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionStartResponse{}, s.reject("start", ErrSurveyNotFound)
		}
		return dto.SubmissionStartResponse{}, err
	}
	if !survey.IsPublished() {
		return dto.SubmissionStartResponse{}, s.reject("start", ErrSurveyInactive)
	}

	meta := s.inspector.Inspect(ctx, client)

	submission := models.Submission{
		SurveyID:  survey.ID,
		State:     models.SubmissionStateStarted,
		IPAddress: meta.IPAddress,
		Device:    meta.Device,
		Browser:   meta.Browser,
		OS:        meta.OS,
		Location:  meta.Location,
		StartedAt: s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionStartResponse{}, err
	}

	if _, err := s.layout.EnsureSubmissionDirs(submission.ID); err != nil {
		if delErr := s.submissions.Delete(ctx, submission.ID); delErr != nil {
			s.logger.Error().Err(delErr).Uint("submission_id", submission.ID).Msg("failed to roll back submission")
		}
		return dto.SubmissionStartResponse{}, s.reject("start", fmt.Errorf("%w: provision media directories: %v", ErrStorage, err))
	}

	observability.LifecycleTransitions().WithLabelValues("start", "ok").Inc()
	s.logger.Info().Uint("submission_id", submission.ID).Uint("survey_id", survey.ID).Msg("submission started")
	s.publish(ctx, SubmissionEvent{Type: EventSubmissionStarted, SubmissionID: submission.ID, SurveyID: survey.ID})

	return dto.SubmissionStartResponse{SubmissionID: submission.ID}, nil
}

// RecordAnswer stores the answer to one question. Answers are serialised per
// submission and a question can be answered only once.
func (s *submissionService) RecordAnswer(ctx context.Context, submissionID uint, payload dto.AnswerCreateRequest) (dto.AnswerResponse, error) {
	unlock := s.locks.Lock(submissionID)
	defer unlock()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.AnswerResponse{}, s.reject("answer", err)
	}

	if !models.IsValidResponse(payload.Answer) {
		return dto.AnswerResponse{}, s.reject("answer", ErrInvalidAnswer)
	}
	if !scoring.InRange(payload.FaceScore) {
		return dto.AnswerResponse{}, s.reject("answer", ErrInvalidScore)
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerResponse{}, s.reject("answer", translateValidation(err))
	}

	if submission.IsCompleted() {
		return dto.AnswerResponse{}, s.reject("answer", ErrAlreadyCompleted)
	}

	survey, err := s.surveys.GetByID(ctx, submission.SurveyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerResponse{}, s.reject("answer", ErrSurveyNotFound)
		}
		return dto.AnswerResponse{}, err
	}
	if !survey.HasQuestion(payload.QuestionID) {
		return dto.AnswerResponse{}, s.reject("answer", ErrQuestionNotFound)
	}

	exists, err := s.answers.Exists(ctx, submissionID, payload.QuestionID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	if exists {
		return dto.AnswerResponse{}, s.reject("answer", ErrDuplicateAnswer)
	}

	answer := models.Answer{
		SubmissionID:  submissionID,
		QuestionID:    payload.QuestionID,
		Response:      payload.Answer,
		FaceDetected:  payload.FaceDetected,
		FaceScore:     payload.FaceScore,
		FaceImagePath: payload.FaceImagePath,
	}
	if err := s.answers.Create(ctx, &answer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AnswerResponse{}, s.reject("answer", ErrDuplicateAnswer)
		}
		return dto.AnswerResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues("answer", "ok").Inc()
	return dto.NewAnswerResponse(answer), nil
}

// UploadMedia stores a face image or video segment under its canonical name.
func (s *submissionService) UploadMedia(ctx context.Context, submissionID uint, payload dto.MediaUploadRequest, file *multipart.FileHeader) (dto.MediaUploadResponse, error) {
	payload.Kind = strings.ToLower(strings.TrimSpace(payload.Kind))
	payload.FileName = strings.TrimSpace(payload.FileName)
	if err := s.validator.Struct(payload); err != nil {
		observability.MediaRejected().WithLabelValues("validation").Inc()
		return dto.MediaUploadResponse{}, translateValidation(err)
	}
	if file == nil {
		observability.MediaRejected().WithLabelValues("validation").Inc()
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: file is required", ErrValidation)
	}

	kind := storage.MediaKind(payload.Kind)
	question, err := storage.ParseMediaName(kind, payload.FileName)
	if err != nil {
		observability.MediaRejected().WithLabelValues("name").Inc()
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: %q", ErrInvalidMediaName, payload.FileName)
	}
	if file.Size > s.maxUpload {
		observability.MediaRejected().WithLabelValues("size").Inc()
		return dto.MediaUploadResponse{}, ErrMediaTooLarge
	}

	unlock := s.locks.Lock(submissionID)
	defer unlock()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.MediaUploadResponse{}, err
	}
	if submission.IsCompleted() {
		observability.MediaRejected().WithLabelValues("state").Inc()
		return dto.MediaUploadResponse{}, ErrAlreadyCompleted
	}

	handle, err := file.Open()
	if err != nil {
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: open upload: %v", ErrStorage, err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxUpload+1)); err != nil {
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: read upload: %v", ErrStorage, err)
	}
	if int64(buf.Len()) > s.maxUpload {
		observability.MediaRejected().WithLabelValues("size").Inc()
		return dto.MediaUploadResponse{}, ErrMediaTooLarge
	}

	mime := mimetype.Detect(buf.Bytes()).String()
	if !isAllowedMedia(kind, mime) {
		observability.MediaRejected().WithLabelValues("type").Inc()
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: %s", ErrMediaType, mime)
	}

	target, err := s.layout.MediaPath(submissionID, kind, payload.FileName)
	if err != nil {
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: %q", ErrInvalidMediaName, payload.FileName)
	}

	if kind == storage.KindVideo {
		if err := s.layout.RemoveStaleSegments(submissionID, question, payload.FileName); err != nil {
			return dto.MediaUploadResponse{}, fmt.Errorf("%w: replace segment: %v", ErrStorage, err)
		}
	}

	size, err := storage.SaveFile(target, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return dto.MediaUploadResponse{}, fmt.Errorf("%w: save media: %v", ErrStorage, err)
	}

	record := models.MediaFile{
		SubmissionID:  submissionID,
		Kind:          string(kind),
		Path:          target,
		QuestionIndex: question,
		MimeType:      mime,
		SizeBytes:     size,
	}
	if err := s.media.Create(ctx, &record); err != nil {
		return dto.MediaUploadResponse{}, err
	}

	observability.MediaUploads().WithLabelValues(record.Kind).Inc()
	s.logger.Debug().
		Uint("submission_id", submissionID).
		Str("kind", record.Kind).
		Int("question", question).
		Int64("size_bytes", size).
		Msg("media stored")

	return dto.MediaUploadResponse{
		ID:            record.ID,
		Path:          record.Path,
		Kind:          record.Kind,
		QuestionIndex: record.QuestionIndex,
		MimeType:      record.MimeType,
		SizeBytes:     record.SizeBytes,
	}, nil
}

// Complete fixes the overall score and moves the submission to its terminal
// state. At least models.SurveyQuestionCount answers are required.
func (s *submissionService) Complete(ctx context.Context, submissionID uint) (dto.CompleteResponse, error) {
	unlock := s.locks.Lock(submissionID)
	defer unlock()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.CompleteResponse{}, s.reject("complete", err)
	}
	if submission.IsCompleted() {
		return dto.CompleteResponse{}, s.reject("complete", ErrAlreadyCompleted)
	}

	answers, err := s.answers.ListBySubmission(ctx, submissionID)
	if err != nil {
		return dto.CompleteResponse{}, err
	}
	if len(answers) < models.SurveyQuestionCount {
		return dto.CompleteResponse{}, s.reject("complete", ErrIncompleteAnswers)
	}

	scores := make([]int, 0, len(answers))
	for _, answer := range answers {
		scores = append(scores, answer.FaceScore)
	}
	overall, err := scoring.MeanRound(scores)
	if err != nil {
		return dto.CompleteResponse{}, s.reject("complete", fmt.Errorf("%w: %v", ErrValidation, err))
	}

	completedAt := s.now().UTC()
	submission.State = models.SubmissionStateCompleted
	submission.CompletedAt = &completedAt
	submission.OverallScore = &overall
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.CompleteResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues("complete", "ok").Inc()
	s.logger.Info().Uint("submission_id", submissionID).Int("overall_score", overall).Msg("submission completed")
	s.publish(ctx, SubmissionEvent{
		Type:         EventSubmissionCompleted,
		SubmissionID: submissionID,
		SurveyID:     submission.SurveyID,
		OverallScore: &overall,
	})

	return dto.CompleteResponse{SubmissionID: submissionID, OverallScore: overall}, nil
}

func (s *submissionService) Get(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	answers, err := s.answers.ListBySubmission(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission, answers), nil
}

// Delete removes the submission rows and its media directory.
func (s *submissionService) Delete(ctx context.Context, submissionID uint) error {
	unlock := s.locks.Lock(submissionID)
	defer unlock()

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	if err := s.submissions.Delete(ctx, submissionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	if err := s.layout.RemoveSubmission(submissionID); err != nil {
		return fmt.Errorf("%w: remove media directory: %v", ErrStorage, err)
	}

	s.logger.Info().Uint("submission_id", submissionID).Msg("submission deleted")
	s.publish(ctx, SubmissionEvent{Type: EventSubmissionDeleted, SubmissionID: submissionID, SurveyID: submission.SurveyID})
	return nil
}

func (s *submissionService) loadSubmission(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *submissionService) reject(operation string, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrValidation):
		outcome = "invalid"
	case errors.Is(err, ErrState):
		outcome = "conflict"
	case errors.Is(err, ErrStorage):
		outcome = "storage"
	}
	observability.LifecycleTransitions().WithLabelValues(operation, outcome).Inc()
	return err
}

func (s *submissionService) publish(ctx context.Context, event SubmissionEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Uint("submission_id", event.SubmissionID).Msg("failed to publish submission event")
	}
}

func isAllowedMedia(kind storage.MediaKind, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch kind {
	case storage.KindImage:
		return mime == "image/png"
	case storage.KindVideo:
		return strings.HasPrefix(mime, "video/") || mime == "audio/webm"
	default:
		return false
	}
}
