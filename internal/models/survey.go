package models

import "time"

// SurveyQuestionCount is the exact number of questions a published survey has.
const SurveyQuestionCount = 5

// Survey is an ordered set of Yes/No questions answered on camera.
type Survey struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `gorm:"foreignKey:SurveyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// IsPublished reports whether the survey accepts submissions. Published
// surveys are immutable.
func (s Survey) IsPublished() bool {
	return s.IsActive
}

// QuestionText returns the text of a question owned by the survey.
func (s Survey) QuestionText(questionID uint) (string, bool) {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return q.Text, true
		}
	}
	return "", false
}

// HasQuestion reports whether questionID belongs to the survey.
func (s Survey) HasQuestion(questionID uint) bool {
	_, ok := s.QuestionText(questionID)
	return ok
}

// Question is one prompt of a survey, ordered 1..SurveyQuestionCount.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SurveyID  uint      `gorm:"not null;index" json:"survey_id"`
	Text      string    `gorm:"column:question_text;size:500;not null" json:"question_text"`
	Order     int       `gorm:"column:position;not null" json:"order"`
	CreatedAt time.Time `json:"created_at"`
}
