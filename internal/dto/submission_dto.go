package dto

import (
	"time"

	"github.com/DevNeccon/frs-video-survey/internal/models"
)

// ClientContext carries request facts used to derive submission metadata.
type ClientContext struct {
	IPAddress string
	UserAgent string
}

// SubmissionStartResponse is returned when a session begins.
type SubmissionStartResponse struct {
	SubmissionID uint `json:"submission_id"`
}

// AnswerCreateRequest records the response to one question.
type AnswerCreateRequest struct {
	QuestionID    uint    `json:"question_id" validate:"required,gt=0"`
	Answer        string  `json:"answer" validate:"required,oneof=Yes No"`
	FaceDetected  bool    `json:"face_detected"`
	FaceScore     int     `json:"face_score" validate:"gte=0,lte=100"`
	FaceImagePath *string `json:"face_image_path" validate:"omitempty,max=500"`
}

// AnswerResponse serializes a stored answer.
type AnswerResponse struct {
	ID            uint    `json:"id"`
	QuestionID    uint    `json:"question_id"`
	Answer        string  `json:"answer"`
	FaceDetected  bool    `json:"face_detected"`
	FaceScore     int     `json:"face_score"`
	FaceImagePath *string `json:"face_image_path"`
}

// NewAnswerResponse converts an Answer model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:            model.ID,
		QuestionID:    model.QuestionID,
		Answer:        model.Response,
		FaceDetected:  model.FaceDetected,
		FaceScore:     model.FaceScore,
		FaceImagePath: model.FaceImagePath,
	}
}

// CompleteResponse is returned once a submission is completed.
type CompleteResponse struct {
	SubmissionID uint `json:"submission_id"`
	OverallScore int  `json:"overall_score"`
}

// MediaUploadRequest describes the multipart form fields of a media upload.
type MediaUploadRequest struct {
	Kind     string `form:"kind" validate:"required,oneof=image video"`
	FileName string `form:"filename" validate:"required,max=64"`
}

// MediaUploadResponse is returned after a media file is stored.
type MediaUploadResponse struct {
	ID            uint   `json:"id"`
	Path          string `json:"path"`
	Kind          string `json:"kind"`
	QuestionIndex int    `json:"question_index"`
	MimeType      string `json:"mime_type"`
	SizeBytes     int64  `json:"size_bytes"`
}

// SubmissionResponse is the read model of a submission.
type SubmissionResponse struct {
	ID           uint             `json:"id"`
	SurveyID     uint             `json:"survey_id"`
	State        string           `json:"state"`
	IPAddress    *string          `json:"ip_address"`
	Device       *string          `json:"device"`
	Browser      *string          `json:"browser"`
	OS           *string          `json:"os"`
	Location     *string          `json:"location"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at"`
	OverallScore *int             `json:"overall_score"`
	Answers      []AnswerResponse `json:"answers"`
}

// NewSubmissionResponse converts a Submission model and its answers into a DTO.
func NewSubmissionResponse(model models.Submission, answers []models.Answer) SubmissionResponse {
	items := make([]AnswerResponse, 0, len(answers))
	for _, answer := range answers {
		items = append(items, NewAnswerResponse(answer))
	}

	return SubmissionResponse{
		ID:           model.ID,
		SurveyID:     model.SurveyID,
		State:        string(model.State),
		IPAddress:    model.IPAddress,
		Device:       model.Device,
		Browser:      model.Browser,
		OS:           model.OS,
		Location:     model.Location,
		StartedAt:    model.StartedAt,
		CompletedAt:  model.CompletedAt,
		OverallScore: model.OverallScore,
		Answers:      items,
	}
}
