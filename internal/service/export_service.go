package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
	"github.com/DevNeccon/frs-video-survey/internal/models"
	"github.com/DevNeccon/frs-video-survey/internal/observability"
	"github.com/DevNeccon/frs-video-survey/internal/repository"
	"github.com/DevNeccon/frs-video-survey/internal/scoring"
	"github.com/DevNeccon/frs-video-survey/internal/storage"
	"github.com/DevNeccon/frs-video-survey/pkg/ffmpeg"
)

// Archive entry names.
const (
	MetadataEntry = "metadata.json"
	VideoEntry    = "videos/full_session.mp4"
	imagesPrefix  = "images/"

	defaultMaxConcurrentExports = 2
)

// Transcoder concatenates ordered video segments into one mp4 file.
type Transcoder interface {
	Concat(ctx context.Context, segments []string, output string) (string, error)
}

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ExportService assembles the export archive of a completed submission.
type ExportService interface {
	Export(ctx context.Context, submissionID uint) (dto.ExportResult, error)
}

// ExportDeps groups the collaborators of the export service.
type ExportDeps struct {
	Surveys       repository.SurveyRepository
	Submissions   repository.SubmissionRepository
	Answers       repository.AnswerRepository
	Exports       repository.ExportRepository
	Layout        storage.Layout
	Transcoder    Transcoder
	Mirror        FileUploader
	Events        EventPublisher
	WorkDir       string
	MaxConcurrent int
}

type exportService struct {
	surveys     repository.SurveyRepository
	submissions repository.SubmissionRepository
	answers     repository.AnswerRepository
	exports     repository.ExportRepository
	layout      storage.Layout
	transcoder  Transcoder
	mirror      FileUploader
	events      EventPublisher
	workDir     string
	slots       *semaphore.Weighted
	inflight    singleflight.Group
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewExportService constructs an ExportService. Exports of different
// submissions run concurrently up to MaxConcurrent; concurrent requests for
// the same submission share one run.
func NewExportService(deps ExportDeps, logger zerolog.Logger) ExportService {
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = defaultMaxConcurrentExports
	}
	if deps.WorkDir == "" {
		deps.WorkDir = filepath.Join(deps.Layout.Root(), ".work")
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}

	return &exportService{
		surveys:     deps.Surveys,
		submissions: deps.Submissions,
		answers:     deps.Answers,
		exports:     deps.Exports,
		layout:      deps.Layout,
		transcoder:  deps.Transcoder,
		mirror:      deps.Mirror,
		events:      deps.Events,
		workDir:     deps.WorkDir,
		slots:       semaphore.NewWeighted(int64(deps.MaxConcurrent)),
		logger:      logger.With().Str("component", "export_service").Logger(),
		tracer:      otel.Tracer("github.com/DevNeccon/frs-video-survey/internal/service/export"),
	}
}

func (s *exportService) Export(ctx context.Context, submissionID uint) (dto.ExportResult, error) {
	key := strconv.FormatUint(uint64(submissionID), 10)
	value, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return dto.ExportResult{}, err
		}
		defer s.slots.Release(1)

		return s.export(ctx, submissionID)
	})
	if shared {
		s.logger.Debug().Uint("submission_id", submissionID).Msg("export shared with concurrent request")
	}

	result, _ := value.(dto.ExportResult)
	return result, err
}

func (s *exportService) export(parent context.Context, submissionID uint) (result dto.ExportResult, err error) {
	ctx, span := s.tracer.Start(parent, "export.assemble", trace.WithAttributes(
		attribute.Int("submission.id", int(submissionID)),
	))
	defer span.End()

	start := time.Now()
	observability.ExportsInFlight().Inc()
	defer func() {
		observability.ExportsInFlight().Dec()
		observability.ExportDuration().Observe(time.Since(start).Seconds())
		observability.ExportResults().WithLabelValues(exportOutcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	submission, survey, answers, err := s.load(ctx, submissionID)
	if err != nil {
		return dto.ExportResult{}, err
	}

	metadata, err := BuildExportMetadata(submission, survey, answers)
	if err != nil {
		return dto.ExportResult{}, err
	}

	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return dto.ExportResult{}, fmt.Errorf("%w: create work dir: %v", ErrStorage, err)
	}
	workspace, err := os.MkdirTemp(s.workDir, fmt.Sprintf("export-%d-*", submissionID))
	if err != nil {
		return dto.ExportResult{}, fmt.Errorf("%w: create workspace: %v", ErrStorage, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workspace); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("workspace", workspace).Msg("failed to remove export workspace")
		}
	}()

	entries, err := s.stage(ctx, submissionID, workspace, metadata)
	if err != nil {
		return dto.ExportResult{}, err
	}

	archive := filepath.Join(workspace, storage.ExportFileName(submissionID))
	if err := WriteArchive(archive, entries, archiveTime(submission)); err != nil {
		return dto.ExportResult{}, fmt.Errorf("%w: write archive: %v", ErrStorage, err)
	}

	final := s.layout.ExportArtifactPath(submissionID)
	if err := storage.PublishFile(archive, final); err != nil {
		return dto.ExportResult{}, fmt.Errorf("%w: publish archive: %v", ErrStorage, err)
	}

	checksum, size, err := storage.Checksum(final)
	if err != nil {
		return dto.ExportResult{}, fmt.Errorf("%w: checksum archive: %v", ErrStorage, err)
	}
	observability.ExportArchiveBytes().Observe(float64(size))

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}

	result = dto.ExportResult{
		SubmissionID: submissionID,
		Path:         final,
		FileName:     storage.ExportFileName(submissionID),
		SizeBytes:    size,
		Checksum:     checksum,
		Entries:      names,
	}
	result.RemoteURL = s.mirrorArchive(ctx, final, result.FileName)

	record := models.SubmissionExport{
		SubmissionID: submissionID,
		Path:         final,
		SizeBytes:    size,
		Checksum:     checksum,
		RemoteURL:    result.RemoteURL,
	}
	record.SetEntries(names)
	if err := s.exports.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to record export")
	}

	span.SetAttributes(
		attribute.Int64("export.size_bytes", size),
		attribute.Int("export.entries", len(names)),
	)
	span.SetStatus(codes.Ok, "published")

	s.logger.Info().
		Uint("submission_id", submissionID).
		Int64("size_bytes", size).
		Str("checksum", checksum).
		Dur("duration", time.Since(start)).
		Msg("export published")

	if err := s.events.Publish(ctx, SubmissionEvent{
		Type:         EventSubmissionExported,
		SubmissionID: submissionID,
		SurveyID:     submission.SurveyID,
		OverallScore: submission.OverallScore,
		ArtifactPath: final,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to publish export event")
	}

	return result, nil
}

func (s *exportService) load(ctx context.Context, submissionID uint) (models.Submission, models.Survey, []models.Answer, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.Survey{}, nil, ErrSubmissionNotFound
		}
		return models.Submission{}, models.Survey{}, nil, err
	}
	if !submission.IsCompleted() {
		return models.Submission{}, models.Survey{}, nil, ErrSubmissionNotCompleted
	}

	survey, err := s.surveys.GetByID(ctx, submission.SurveyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, models.Survey{}, nil, ErrSurveyNotFound
		}
		return models.Submission{}, models.Survey{}, nil, err
	}

	answers, err := s.answers.ListBySubmission(ctx, submissionID)
	if err != nil {
		return models.Submission{}, models.Survey{}, nil, err
	}

	return submission, survey, answers, nil
}

// stage writes metadata, copies present face images and renders the full
// session video inside workspace. The returned entries are in archive order.
func (s *exportService) stage(ctx context.Context, submissionID uint, workspace string, metadata dto.ExportMetadata) ([]ArchiveEntry, error) {
	metadataPath := filepath.Join(workspace, MetadataEntry)
	payload, err := MarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(metadataPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write metadata: %v", ErrStorage, err)
	}

	imagesDir := filepath.Join(workspace, "images")
	videosDir := filepath.Join(workspace, "videos")
	for _, dir := range []string{imagesDir, videosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create workspace dir: %v", ErrStorage, err)
		}
	}

	var images []ArchiveEntry
	for question := 1; question <= storage.MaxQuestionIndex; question++ {
		src := s.layout.ImagePath(submissionID, question)
		if !storage.FileExists(src) {
			continue
		}
		name := storage.ImageFileName(question)
		dst := filepath.Join(imagesDir, name)
		if err := storage.CopyFile(src, dst); err != nil {
			return nil, fmt.Errorf("%w: copy %s: %v", ErrStorage, name, err)
		}
		images = append(images, ArchiveEntry{Name: imagesPrefix + name, Source: dst})
	}

	segments, err := s.layout.SegmentPaths(submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list segments: %v", ErrStorage, err)
	}

	video, err := s.transcoder.Concat(ctx, segments, filepath.Join(videosDir, "full_session.mp4"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	entries := make([]ArchiveEntry, 0, 2+len(images))
	entries = append(entries,
		ArchiveEntry{Name: MetadataEntry, Source: metadataPath},
		ArchiveEntry{Name: VideoEntry, Source: video},
	)
	entries = append(entries, images...)
	return entries, nil
}

func (s *exportService) mirrorArchive(ctx context.Context, path, name string) string {
	if s.mirror == nil {
		return ""
	}

	file, err := os.Open(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to open archive for mirroring")
		return ""
	}
	defer file.Close()

	url, err := s.mirror.Upload(ctx, name, file)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("failed to mirror export archive")
		return ""
	}
	return url
}

// BuildExportMetadata renders the metadata document. Responses follow the
// survey's question order; answers to unknown questions come last.
func BuildExportMetadata(submission models.Submission, survey models.Survey, answers []models.Answer) (dto.ExportMetadata, error) {
	order := make(map[uint]int, len(survey.Questions))
	for _, q := range survey.Questions {
		order[q.ID] = q.Order
	}

	sorted := make([]models.Answer, len(answers))
	copy(sorted, answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, ok := order[sorted[i].QuestionID]
		if !ok {
			oi = math.MaxInt
		}
		oj, ok := order[sorted[j].QuestionID]
		if !ok {
			oj = math.MaxInt
		}
		if oi != oj {
			return oi < oj
		}
		return sorted[i].QuestionID < sorted[j].QuestionID
	})

	responses := make([]dto.ExportResponseRecord, 0, len(sorted))
	scores := make([]int, 0, len(sorted))
	for _, answer := range sorted {
		text, ok := survey.QuestionText(answer.QuestionID)
		if !ok {
			text = fmt.Sprintf("question_id=%d", answer.QuestionID)
		}
		responses = append(responses, dto.ExportResponseRecord{
			QuestionID:   answer.QuestionID,
			Order:        order[answer.QuestionID],
			Question:     text,
			Answer:       answer.Response,
			FaceDetected: answer.FaceDetected,
			Score:        answer.FaceScore,
			FaceImage:    answer.FaceImagePath,
		})
		scores = append(scores, answer.FaceScore)
	}

	overall := submission.OverallScore
	if overall == nil && len(scores) > 0 {
		value, err := scoring.MeanRound(scores)
		if err != nil {
			return dto.ExportMetadata{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		overall = &value
	}

	var completedAt *string
	if submission.CompletedAt != nil {
		formatted := formatTimestamp(*submission.CompletedAt)
		completedAt = &formatted
	}

	return dto.ExportMetadata{
		SubmissionID: strconv.FormatUint(uint64(submission.ID), 10),
		SurveyID:     strconv.FormatUint(uint64(submission.SurveyID), 10),
		StartedAt:    formatTimestamp(submission.StartedAt),
		CompletedAt:  completedAt,
		IPAddress:    submission.IPAddress,
		Device:       submission.Device,
		Browser:      submission.Browser,
		OS:           submission.OS,
		Location:     submission.Location,
		Responses:    responses,
		OverallScore: overall,
	}, nil
}

// MarshalMetadata encodes metadata.json with two-space indentation.
func MarshalMetadata(metadata dto.ExportMetadata) ([]byte, error) {
	payload, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return append(payload, '\n'), nil
}

// ArchiveEntry maps an archive member name to the file holding its bytes.
type ArchiveEntry struct {
	Name   string
	Source string
}

// WriteArchive writes entries in the given order using deflate. Every member
// carries modified and mode 0644 so equal inputs yield equal bytes.
func WriteArchive(path string, entries []ArchiveEntry, modified time.Time) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	writer := zip.NewWriter(file)
	for _, entry := range entries {
		if err := addArchiveEntry(writer, entry, modified); err != nil {
			_ = writer.Close()
			_ = file.Close()
			return err
		}
	}

	if err := writer.Close(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func addArchiveEntry(writer *zip.Writer, entry ArchiveEntry, modified time.Time) error {
	src, err := os.Open(entry.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	header.SetMode(0o644)

	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

func archiveTime(submission models.Submission) time.Time {
	if submission.CompletedAt != nil {
		return submission.CompletedAt.UTC()
	}
	return submission.StartedAt.UTC()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func exportOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ffmpeg.ErrNoSegments):
		return "no_segments"
	case errors.Is(err, ffmpeg.ErrTranscodeFailed):
		return "transcode_failed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrState):
		return "conflict"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "error"
	}
}
