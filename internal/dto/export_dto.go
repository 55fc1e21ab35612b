package dto

// ExportResponseRecord is one per-question entry of metadata.json.
type ExportResponseRecord struct {
	QuestionID   uint    `json:"question_id"`
	Order        int     `json:"order"`
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	FaceDetected bool    `json:"face_detected"`
	Score        int     `json:"score"`
	FaceImage    *string `json:"face_image"`
}

// ExportMetadata is the document written to metadata.json inside the archive.
// Identifiers are strings and timestamps are RFC 3339 in UTC.
type ExportMetadata struct {
	SubmissionID string                 `json:"submission_id"`
	SurveyID     string                 `json:"survey_id"`
	StartedAt    string                 `json:"started_at"`
	CompletedAt  *string                `json:"completed_at"`
	IPAddress    *string                `json:"ip_address"`
	Device       *string                `json:"device"`
	Browser      *string                `json:"browser"`
	OS           *string                `json:"os"`
	Location     *string                `json:"location"`
	Responses    []ExportResponseRecord `json:"responses"`
	OverallScore *int                   `json:"overall_score"`
}

// ExportResult describes a published export archive.
type ExportResult struct {
	SubmissionID uint     `json:"submission_id"`
	Path         string   `json:"-"`
	FileName     string   `json:"file_name"`
	SizeBytes    int64    `json:"size_bytes"`
	Checksum     string   `json:"checksum"`
	Entries      []string `json:"entries"`
	RemoteURL    string   `json:"remote_url,omitempty"`
}
