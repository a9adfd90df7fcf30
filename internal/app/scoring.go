package app

import (
	"fmt"

	"quiz-session-service/internal/domain"
)

// PassingScore is the lowest score shown as a pass in a review.
const PassingScore = 60

// Score grades answers against quiz. A question counts as correct only when its selection
// equals the correct index, so unanswered questions are always wrong. The percentage is
// rounded half up. Score panics on an empty quiz or a mismatched sheet; session start
// validation rules both out.
func Score(quiz domain.Quiz, answers []domain.Selection) (int, []bool) {
	n := len(quiz.Questions)
	if n == 0 {
		panic("scoring: quiz has no questions")
	}
	if len(answers) != n {
		panic(fmt.Sprintf("scoring: %d answers for %d questions", len(answers), n))
	}

	correct := make([]bool, n)
	count := 0
	for i, q := range quiz.Questions {
		if answers[i].Is(q.CorrectAnswerIndex) {
			correct[i] = true
			count++
		}
	}
	return percent(count, n), correct
}

// percent computes round-half-up(100*part/total) without floating point.
func percent(part, total int) int {
	return (200*part + total) / (2 * total)
}
