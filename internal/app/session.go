package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
)

// DefaultSecondsPerQuestion is the time budget granted per question.
const DefaultSecondsPerQuestion = 120

// SessionOption customises a Session at construction.
type SessionOption func(*Session)

// WithNow overrides the timestamp source, for deterministic tests.
func WithNow(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSecondsPerQuestion sets the per-question budget; non-positive values keep the default.
func WithSecondsPerQuestion(seconds int) SessionOption {
	return func(s *Session) {
		if seconds > 0 {
			s.secondsPerQuestion = seconds
		}
	}
}

// WithResultHandler registers fn to receive the Result once it exists. fn runs outside the
// session lock on the goroutine that caused the submission.
func WithResultHandler(fn func(domain.Result)) SessionOption {
	return func(s *Session) { s.onResult = fn }
}

func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// Session is one user's timed pass through a quiz. It owns the clock, the answer sheet and
// the current-question pointer; a single mutex serialises ticks with caller operations.
type Session struct {
	id                 string
	now                func() time.Time
	secondsPerQuestion int
	onResult           func(domain.Result)
	log                zerolog.Logger

	mu          sync.Mutex
	state       domain.SessionState
	quiz        domain.Quiz
	userID      string
	current     int
	sheet       *AnswerSheet
	clock       *Clock
	result      *domain.Result
	pending     *domain.Result
	done        chan struct{}
	subscribers map[chan domain.SessionEvent]struct{}
}

// NewSession returns an idle session; call Begin to start it.
func NewSession(id string, opts ...SessionOption) *Session {
	s := &Session{
		id:                 id,
		now:                time.Now,
		secondsPerQuestion: DefaultSecondsPerQuestion,
		log:                zerolog.Nop(),
		state:              domain.SessionIdle,
		done:               make(chan struct{}),
		subscribers:        make(map[chan domain.SessionEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("session_id", id).Logger()
	return s
}

func (s *Session) ID() string { return s.id }

// Begin validates quiz, sizes the answer sheet and starts the countdown.
func (s *Session) Begin(quiz domain.Quiz, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.SessionIdle:
	case domain.SessionAbandoned:
		return domain.ErrSessionClosed
	default:
		return domain.ErrSessionAlreadyBegun
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		return err
	}

	s.quiz = quiz.Clone()
	s.userID = userID
	s.sheet = NewAnswerSheet(s.quiz)
	s.clock = NewClock(s.progressLocked, s.expireLocked)
	if err := s.clock.Start(len(s.quiz.Questions) * s.secondsPerQuestion); err != nil {
		return fmt.Errorf("start clock: %w", err)
	}
	s.current = 0
	s.state = domain.SessionActive

	s.log.Info().
		Str("quiz_id", s.quiz.ID).
		Str("user_id", userID).
		Int("budget_seconds", s.clock.Budget()).
		Msg("session started")
	s.broadcastLocked(s.stateEventLocked())
	return nil
}

// SelectAnswer records option for the current question. Calls outside the active state and
// out-of-range options are dropped; the return value reports whether the sheet changed.
func (s *Session) SelectAnswer(option int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionActive {
		return false
	}
	if err := s.sheet.Select(s.current, option); err != nil {
		s.log.Debug().Err(err).Int("question", s.current).Int("option", option).Msg("selection ignored")
		return false
	}
	s.broadcastLocked(s.stateEventLocked())
	return true
}

// GoToQuestion moves the pointer to any valid question. Out-of-range targets are dropped.
func (s *Session) GoToQuestion(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(index)
}

func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current + 1)
}

func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current - 1)
}

func (s *Session) goToLocked(index int) bool {
	if s.state != domain.SessionActive {
		return false
	}
	if index < 0 || index >= len(s.quiz.Questions) {
		return false
	}
	s.current = index
	s.broadcastLocked(s.stateEventLocked())
	return true
}

// Submit scores the attempt. A manual submission (forced=false) requires every question to
// be answered and otherwise returns ErrIncompleteAnswers. Outside the active state it returns
// ErrSessionClosed. Neither error changes the session.
func (s *Session) Submit(forced bool) (domain.Result, error) {
	s.mu.Lock()
	res, err := s.submitLocked(forced)
	s.mu.Unlock()
	if err != nil {
		return domain.Result{}, err
	}
	s.deliver(res)
	return res.Clone(), nil
}

// Tick advances the clock by one second. Expiry submits the sheet as it stands.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != domain.SessionActive {
		s.mu.Unlock()
		return
	}
	s.clock.Tick()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		s.deliver(*pending)
	}
}

// Abandon ends an unfinished session without a Result and releases its clock.
func (s *Session) Abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionIdle && s.state != domain.SessionActive {
		return false
	}
	if s.clock != nil {
		s.clock.Stop()
	}
	s.state = domain.SessionAbandoned
	s.log.Info().Msg("session abandoned")
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventAbandoned, SessionID: s.id})
	s.closeLocked()
	return true
}

// Drive feeds ticks from src into the session until it ends or ctx is cancelled,
// then stops src.
func (s *Session) Drive(ctx context.Context, src TickSource) {
	defer src.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-src.Ticks():
			if !ok {
				return
			}
			s.Tick()
		}
	}
}

// Done is closed when the session reaches review or is abandoned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Result returns the scored outcome once the session is in review.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.Result{}, false
	}
	return s.result.Clone(), true
}

// Review pairs every question with the submitted answer and its explanation.
func (s *Session) Review() (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionReview || s.result == nil {
		return domain.Review{}, domain.ErrReviewUnavailable
	}
	res := s.result.Clone()
	items := make([]domain.ReviewItem, len(s.quiz.Questions))
	for i, q := range s.quiz.Questions {
		items[i] = domain.ReviewItem{
			Index:        i,
			QuestionID:   q.ID,
			Content:      q.Content,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: q.CorrectAnswerIndex,
			Selected:     res.Answers[i],
			Correct:      res.PerQuestionCorrect[i],
			Explanation:  q.Explanation,
		}
	}
	return domain.Review{Result: res, Passed: res.Score >= PassingScore, Items: items}, nil
}

// Subscribe returns a channel of session events. The caller must invoke the returned cancel
// function. The channel is closed when the session ends.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 16)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		ch <- s.finalEventLocked()
		close(ch)
		return ch, func() {}
	}

	s.subscribers[ch] = struct{}{}
	ch <- s.stateEventLocked()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) submitLocked(forced bool) (domain.Result, error) {
	if s.state != domain.SessionActive {
		return domain.Result{}, domain.ErrSessionClosed
	}
	if !forced && !s.sheet.IsFullyAnswered() {
		return domain.Result{}, domain.ErrIncompleteAnswers
	}

	s.state = domain.SessionSubmitting
	s.clock.Stop()
	answers := s.sheet.Snapshot()
	score, correct := Score(s.quiz, answers)

	count := 0
	for _, ok := range correct {
		if ok {
			count++
		}
	}
	res := domain.Result{
		ID:                    uuid.NewString(),
		SessionID:             s.id,
		QuizID:                s.quiz.ID,
		UserID:                s.userID,
		Answers:               answers,
		Score:                 score,
		PerQuestionCorrect:    correct,
		CorrectCount:          count,
		QuestionCount:         len(correct),
		Forced:                forced,
		CompletedAt:           s.now(),
		TimeRemainingAtSubmit: s.clock.Remaining(),
	}
	s.result = &res
	s.state = domain.SessionReview

	s.log.Info().
		Bool("forced", forced).
		Int("score", score).
		Int("time_remaining", res.TimeRemainingAtSubmit).
		Msg("session submitted")

	snapshot := res.Clone()
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventResult, SessionID: s.id, Result: &snapshot})
	s.closeLocked()
	return res.Clone(), nil
}

func (s *Session) progressLocked(remaining int) {
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventTick, SessionID: s.id, RemainingSeconds: remaining})
}

func (s *Session) expireLocked() {
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventExpired, SessionID: s.id})
	res, err := s.submitLocked(true)
	if err != nil {
		s.log.Error().Err(err).Msg("forced submission failed")
		return
	}
	s.pending = &res
}

func (s *Session) deliver(res domain.Result) {
	if s.onResult != nil {
		s.onResult(res.Clone())
	}
}

func (s *Session) closeLocked() {
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	close(s.done)
}

func (s *Session) broadcastLocked(ev domain.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop its oldest event so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func (s *Session) stateEventLocked() domain.SessionEvent {
	view := s.viewLocked()
	ev := domain.SessionEvent{Type: domain.EventState, SessionID: s.id, View: &view}
	if s.clock != nil {
		ev.RemainingSeconds = s.clock.Remaining()
	}
	return ev
}

func (s *Session) finalEventLocked() domain.SessionEvent {
	if s.result != nil {
		res := s.result.Clone()
		return domain.SessionEvent{Type: domain.EventResult, SessionID: s.id, Result: &res}
	}
	return domain.SessionEvent{Type: domain.EventAbandoned, SessionID: s.id}
}

func (s *Session) viewLocked() domain.SessionView {
	n := len(s.quiz.Questions)
	view := domain.SessionView{
		SessionID:     s.id,
		QuizID:        s.quiz.ID,
		Title:         s.quiz.Title,
		Description:   s.quiz.Description,
		UserID:        s.userID,
		State:         s.state,
		CurrentIndex:  s.current,
		QuestionCount: n,
	}
	if n > 0 {
		q := s.quiz.Questions[s.current]
		view.Progress = percent(s.current+1, n)
		view.Current = &domain.QuestionView{
			ID:      q.ID,
			Content: q.Content,
			Options: append([]string(nil), q.Options...),
		}
	}
	if s.sheet != nil {
		view.Answers = s.sheet.Snapshot()
		view.AnsweredCount = s.sheet.AnsweredCount()
		view.CanSubmit = s.state == domain.SessionActive && s.sheet.IsFullyAnswered()
	}
	if s.clock != nil {
		view.BudgetSeconds = s.clock.Budget()
		view.RemainingSeconds = s.clock.Remaining()
	}
	view.RemainingDisplay = FormatRemaining(view.RemainingSeconds)
	return view
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
