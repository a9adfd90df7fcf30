package cli

import (
	"testing"

	"quiz-session-service/internal/domain"
)

func TestSampleQuizzesAreValid(t *testing.T) {
	for id, quiz := range sampleQuizzes() {
		if quiz.ID != id {
			t.Fatalf("quiz keyed %q has id %q", id, quiz.ID)
		}
		if err := domain.ValidateQuiz(quiz); err != nil {
			t.Fatalf("sample quiz %s invalid: %v", id, err)
		}
	}
}
