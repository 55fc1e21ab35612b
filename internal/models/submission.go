package models

import "time"

// SubmissionState is the lifecycle position of a submission.
type SubmissionState string

const (
	// SubmissionStateStarted is the initial state; answers may be recorded.
	SubmissionStateStarted SubmissionState = "started"
	// SubmissionStateCompleted is terminal; the overall score is fixed.
	SubmissionStateCompleted SubmissionState = "completed"
)

// Submission is one respondent's session through a survey.
type Submission struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	SurveyID     uint               `gorm:"not null;index" json:"survey_id"`
	State        SubmissionState    `gorm:"size:16;not null;index" json:"state"`
	IPAddress    *string            `gorm:"size:64" json:"ip_address"`
	Device       *string            `gorm:"size:64" json:"device"`
	Browser      *string            `gorm:"size:64" json:"browser"`
	OS           *string            `gorm:"column:os;size:64" json:"os"`
	Location     *string            `gorm:"size:128" json:"location"`
	StartedAt    time.Time          `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at"`
	OverallScore *int               `json:"overall_score"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Answers      []Answer           `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	MediaFiles   []MediaFile        `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Exports      []SubmissionExport `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsCompleted reports whether the submission reached its terminal state.
func (s Submission) IsCompleted() bool {
	return s.State == SubmissionStateCompleted
}

const (
	// AnswerYes is the affirmative response literal.
	AnswerYes = "Yes"
	// AnswerNo is the negative response literal.
	AnswerNo = "No"
)

// Answer is the response to one question within a submission. At most one
// answer exists per (submission, question).
type Answer struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"not null;uniqueIndex:idx_answers_submission_question" json:"submission_id"`
	QuestionID    uint      `gorm:"not null;uniqueIndex:idx_answers_submission_question" json:"question_id"`
	Response      string    `gorm:"column:answer;size:8;not null" json:"answer"`
	FaceDetected  bool      `gorm:"not null" json:"face_detected"`
	FaceScore     int       `gorm:"not null" json:"face_score"`
	FaceImagePath *string   `gorm:"size:500" json:"face_image_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsValidResponse reports whether value is one of the accepted literals.
func IsValidResponse(value string) bool {
	return value == AnswerYes || value == AnswerNo
}
