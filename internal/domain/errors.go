package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz wraps every validation failure of a quiz definition.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrSessionAlreadyBegun is returned when Begin is called twice on one session.
	ErrSessionAlreadyBegun = errors.New("quiz session already begun")
	// ErrSessionClosed reports an operation that arrived after the session left the active state.
	ErrSessionClosed = errors.New("quiz session is not active")
	// ErrIncompleteAnswers rejects a manual submission while questions are unanswered.
	ErrIncompleteAnswers = errors.New("all questions must be answered before submitting")
	// ErrReviewUnavailable is returned when a review is requested before the session was scored.
	ErrReviewUnavailable = errors.New("review is only available after submission")
)
