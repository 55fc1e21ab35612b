package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MediaFile records an uploaded artifact. Kind holds a storage.MediaKind. Rows are never updated and go away
// only together with their submission.
type MediaFile struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"not null;index" json:"submission_id"`
	Kind          string    `gorm:"column:type;size:16;not null" json:"type"`
	Path          string    `gorm:"size:500;not null" json:"path"`
	QuestionIndex int       `gorm:"not null" json:"question_index"`
	MimeType      string    `gorm:"size:64" json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// SubmissionExport logs a published export archive.
type SubmissionExport struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;index" json:"submission_id"`
	Path         string         `gorm:"size:500;not null" json:"path"`
	SizeBytes    int64          `json:"size_bytes"`
	Checksum     string         `gorm:"size:64" json:"checksum"`
	Entries      datatypes.JSON `gorm:"type:json" json:"-"`
	RemoteURL    string         `gorm:"size:512" json:"remote_url"`
	CreatedAt    time.Time      `json:"created_at"`
}

// SetEntries stores the archive entry names.
func (e *SubmissionExport) SetEntries(entries []string) {
	data, err := json.Marshal(entries)
	if err != nil {
		e.Entries = datatypes.JSON([]byte("[]"))
		return
	}
	e.Entries = datatypes.JSON(data)
}

// EntryList returns the stored archive entry names.
func (e SubmissionExport) EntryList() []string {
	if len(e.Entries) == 0 {
		return nil
	}

	var entries []string
	if err := json.Unmarshal(e.Entries, &entries); err != nil {
		return nil
	}
	return entries
}
