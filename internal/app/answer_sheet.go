package app

import (
	"errors"

	"quiz-session-service/internal/domain"
)

var (
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")
)

// AnswerSheet holds the live selection for every question of one attempt.
// Its size is fixed at construction.
type AnswerSheet struct {
	optionCounts []int
	selections   []domain.Selection
}

// NewAnswerSheet sizes a sheet for quiz with every question unanswered.
func NewAnswerSheet(quiz domain.Quiz) *AnswerSheet {
	counts := make([]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		counts[i] = len(q.Options)
	}
	return &AnswerSheet{
		optionCounts: counts,
		selections:   make([]domain.Selection, len(counts)),
	}
}

// Select records option for question, replacing any earlier choice.
func (a *AnswerSheet) Select(question, option int) error {
	if question < 0 || question >= len(a.selections) {
		return ErrQuestionOutOfRange
	}
	if option < 0 || option >= a.optionCounts[question] {
		return ErrOptionOutOfRange
	}
	a.selections[question] = domain.Selected(option)
	return nil
}

// At returns the selection for question; out-of-range positions read as unanswered.
func (a *AnswerSheet) At(question int) domain.Selection {
	if question < 0 || question >= len(a.selections) {
		return domain.Selection{}
	}
	return a.selections[question]
}

func (a *AnswerSheet) Len() int { return len(a.selections) }

func (a *AnswerSheet) AnsweredCount() int {
	n := 0
	for _, s := range a.selections {
		if s.Answered() {
			n++
		}
	}
	return n
}

func (a *AnswerSheet) IsFullyAnswered() bool {
	return a.AnsweredCount() == len(a.selections)
}

// Snapshot returns a copy that later Select calls cannot affect.
func (a *AnswerSheet) Snapshot() []domain.Selection {
	out := make([]domain.Selection, len(a.selections))
	copy(out, a.selections)
	return out
}
