package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// translateValidation maps validator field errors onto domain validation
// errors. Unknown fields are reported with their tag.
func translateValidation(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	for _, fieldErr := range validationErrors {
		switch fieldErr.Field() {
		case "Answer":
			return ErrInvalidAnswer
		case "FaceScore":
			return ErrInvalidScore
		case "Kind":
			return ErrInvalidMediaKind
		case "FileName":
			return ErrInvalidMediaName
		}
	}

	first := validationErrors[0]
	return fmt.Errorf("%w: %s failed on %s", ErrValidation, strings.ToLower(first.Field()), first.Tag())
}
