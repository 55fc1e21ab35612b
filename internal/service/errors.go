package service

import (
	"errors"
	"fmt"
)

// Error categories. Every domain error wraps exactly one of them so callers
// can branch on the category with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("invalid state")
	ErrStorage    = errors.New("storage failure")
	// ErrExportFailed wraps media pipeline failures (missing segments,
	// transcoder errors) surfaced by an export.
	ErrExportFailed = errors.New("export failed")
)

var (
	ErrSurveyNotFound     = fmt.Errorf("%w: survey", ErrNotFound)
	ErrSubmissionNotFound = fmt.Errorf("%w: submission", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("%w: question", ErrNotFound)

	ErrInvalidAnswer    = fmt.Errorf("%w: answer must be 'Yes' or 'No'", ErrValidation)
	ErrInvalidScore     = fmt.Errorf("%w: face_score must be between 0 and 100", ErrValidation)
	ErrInvalidMediaKind = fmt.Errorf("%w: kind must be image or video", ErrValidation)
	ErrInvalidMediaName = fmt.Errorf("%w: filename does not follow the media naming convention", ErrValidation)
	ErrMediaTooLarge    = fmt.Errorf("%w: media file exceeds maximum allowed size", ErrValidation)
	ErrMediaType        = fmt.Errorf("%w: media content type not allowed", ErrValidation)

	ErrSurveyInactive         = fmt.Errorf("%w: survey is not published", ErrState)
	ErrSurveyPublished        = fmt.Errorf("%w: survey is published and can no longer change", ErrState)
	ErrSurveyFull             = fmt.Errorf("%w: survey already has 5 questions", ErrState)
	ErrSurveyQuestionCount    = fmt.Errorf("%w: survey must have exactly 5 questions to publish", ErrState)
	ErrIncompleteAnswers      = fmt.Errorf("%w: submission must have 5 answers before completing", ErrState)
	ErrAlreadyCompleted       = fmt.Errorf("%w: submission already completed", ErrState)
	ErrDuplicateAnswer        = fmt.Errorf("%w: question already answered", ErrState)
	ErrSubmissionNotCompleted = fmt.Errorf("%w: submission is not completed", ErrState)
)
