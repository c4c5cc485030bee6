package validator

import (
	"fmt"

	"github.com/SAP-F-2025/attempt-session-service/internal/errors"
	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// QuestionValidator checks the question list of an attempt before a session is built from it
type QuestionValidator struct {
	validate *validator.Validate
}

func NewQuestionValidator(validate *validator.Validate) *QuestionValidator {
	return &QuestionValidator{validate: validate}
}

// ValidateQuestion checks a single question's keys and type
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if err := v.validate.Struct(question); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// ValidateBatch validates every question and rejects duplicated keys
func (v *QuestionValidator) ValidateBatch(questions []models.Question) error {
	backendKeys := make(map[string]int, len(questions))
	localKeys := make(map[string]int, len(questions))

	for i := range questions {
		question := &questions[i]
		if err := v.ValidateQuestion(question); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
		if prev, ok := backendKeys[question.BackendKey]; ok {
			return errors.NewDuplicateKeyError("backend_key", question.BackendKey, prev+1, i+1)
		}
		if prev, ok := localKeys[question.LocalKey]; ok {
			return errors.NewDuplicateKeyError("local_key", question.LocalKey, prev+1, i+1)
		}
		backendKeys[question.BackendKey] = i
		localKeys[question.LocalKey] = i
	}

	return nil
}
