package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	govalidator "github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *govalidator.Validate
)

func validatorInstance() *govalidator.Validate {
	validateOnce.Do(func() {
		validate = govalidator.New(govalidator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateQuestion, Question{})
	})
	return validate
}

// validateQuestion rejects a correct answer index that does not point into Options.
func validateQuestion(sl govalidator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		sl.ReportError(q.CorrectAnswerIndex, "CorrectAnswerIndex", "CorrectAnswerIndex", "answerrange", "")
	}
}

// ValidateQuiz checks the structural invariants a session relies on.
// Every failure wraps ErrInvalidQuiz.
func ValidateQuiz(q Quiz) error {
	err := validatorInstance().Struct(q)
	if err == nil {
		return nil
	}

	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidQuiz, strings.Join(msgs, "; "))
}

func describe(fe govalidator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Quiz.")
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "answerrange":
		return fmt.Sprintf("%s is out of range", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
