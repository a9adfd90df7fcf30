package domain

import (
	"encoding/json"
	"time"
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID                 string   `json:"id" validate:"required"`
	Content            string   `json:"content"`
	Options            []string `json:"options" validate:"min=2"`
	CorrectAnswerIndex int      `json:"correctAnswer"`
	Explanation        string   `json:"explanation,omitempty"`
}

// Quiz is an ordered collection of questions. It is never mutated once a session starts.
type Quiz struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions" validate:"min=1,dive"`
	DocumentID  string     `json:"documentId,omitempty"`
	AuthorID    string     `json:"createdBy,omitempty"`
}

// Clone returns a deep copy of the quiz.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		out.Questions[i] = question
	}
	return out
}

// Selection is the answer recorded for one question. The zero value means unanswered.
type Selection struct {
	index    int
	answered bool
}

// Selected returns a Selection holding the given option index.
func Selected(index int) Selection {
	return Selection{index: index, answered: true}
}

// Index returns the chosen option and whether the question was answered at all.
func (s Selection) Index() (int, bool) {
	return s.index, s.answered
}

// Answered reports whether an option was chosen.
func (s Selection) Answered() bool {
	return s.answered
}

// Is reports whether the selection holds exactly the given option.
func (s Selection) Is(index int) bool {
	return s.answered && s.index == index
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if !s.answered {
		return []byte("null"), nil
	}
	return json.Marshal(s.index)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var idx *int
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	if idx == nil {
		*s = Selection{}
		return nil
	}
	*s = Selected(*idx)
	return nil
}

// Result is the scored outcome of one session. It is created once and never mutated.
type Result struct {
	ID                    string      `json:"id"`
	SessionID             string      `json:"sessionId"`
	QuizID                string      `json:"quizId"`
	UserID                string      `json:"userId"`
	Answers               []Selection `json:"answers"`
	Score                 int         `json:"score"`
	PerQuestionCorrect    []bool      `json:"perQuestionCorrect"`
	CorrectCount          int         `json:"correctCount"`
	QuestionCount         int         `json:"questionCount"`
	Forced                bool        `json:"forced"`
	CompletedAt           time.Time   `json:"completedAt"`
	TimeRemainingAtSubmit int         `json:"timeRemainingAtSubmit"`
}

// Clone returns a copy that shares no slices with r.
func (r Result) Clone() Result {
	out := r
	out.Answers = append([]Selection(nil), r.Answers...)
	out.PerQuestionCorrect = append([]bool(nil), r.PerQuestionCorrect...)
	return out
}

// SessionState enumerates the phases of a quiz session.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionActive     SessionState = "active"
	SessionSubmitting SessionState = "submitting"
	SessionReview     SessionState = "review"
	SessionAbandoned  SessionState = "abandoned"
)

// Terminal reports whether no further transition can leave the state.
func (s SessionState) Terminal() bool {
	return s == SessionReview || s == SessionAbandoned
}

// QuestionView is a question as shown while the session is active; the correct answer is withheld.
type QuestionView struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Options []string `json:"options"`
}

// SessionView is a read-only snapshot of a session for clients.
type SessionView struct {
	SessionID        string        `json:"sessionId"`
	QuizID           string        `json:"quizId"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	UserID           string        `json:"userId"`
	State            SessionState  `json:"state"`
	CurrentIndex     int           `json:"currentIndex"`
	QuestionCount    int           `json:"questionCount"`
	Progress         int           `json:"progress"`
	Current          *QuestionView `json:"current,omitempty"`
	Answers          []Selection   `json:"answers"`
	AnsweredCount    int           `json:"answeredCount"`
	CanSubmit        bool          `json:"canSubmit"`
	BudgetSeconds    int           `json:"budgetSeconds"`
	RemainingSeconds int           `json:"remainingSeconds"`
	RemainingDisplay string        `json:"remainingDisplay"`
}

// ReviewItem pairs a question with the user's answer after scoring.
type ReviewItem struct {
	Index        int       `json:"index"`
	QuestionID   string    `json:"questionId"`
	Content      string    `json:"content"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"correctAnswer"`
	Selected     Selection `json:"selected"`
	Correct      bool      `json:"correct"`
	Explanation  string    `json:"explanation,omitempty"`
}

// Review is the post-submission breakdown of a session.
type Review struct {
	Result Result       `json:"result"`
	Passed bool         `json:"passed"`
	Items  []ReviewItem `json:"items"`
}

// EventType names the kinds of session events pushed to subscribers.
type EventType string

const (
	EventTick      EventType = "tick"
	EventExpired   EventType = "expired"
	EventState     EventType = "state"
	EventResult    EventType = "result"
	EventAbandoned EventType = "abandoned"
)

// SessionEvent is a notification emitted by a session.
type SessionEvent struct {
	Type             EventType    `json:"type"`
	SessionID        string       `json:"sessionId"`
	RemainingSeconds int          `json:"remainingSeconds"`
	View             *SessionView `json:"view,omitempty"`
	Result           *Result      `json:"result,omitempty"`
}
