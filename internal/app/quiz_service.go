package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Add(session *Session)
	Get(sessionID string) (*Session, bool)
	DeleteIfClosed(sessionID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultSink receives every Result exactly once, for persistence or reporting.
type ResultSink interface {
	Publish(ctx context.Context, result domain.Result) error
}

// TickerFactory creates the tick source for a new session.
type TickerFactory func() TickSource

// ServiceOptions tunes session behaviour.
type ServiceOptions struct {
	SecondsPerQuestion int
	TickInterval       time.Duration
	NewTicker          TickerFactory
	Now                func() time.Time
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	results  ResultSink
	opts     ServiceOptions
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, results ResultSink, opts ServiceOptions, log zerolog.Logger) *QuizService {
	if opts.SecondsPerQuestion <= 0 {
		opts.SecondsPerQuestion = DefaultSecondsPerQuestion
	}
	if opts.NewTicker == nil {
		interval := opts.TickInterval
		opts.NewTicker = func() TickSource { return NewWallTicker(interval) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QuizService{
		sessions: store,
		quizzes:  quizzes,
		results:  results,
		opts:     opts,
		log:      log.With().Str("component", "quiz_service").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Begin starts a new timed session of quizID for userID.
func (s *QuizService) Begin(ctx context.Context, quizID, userID string) (domain.SessionView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionView{}, err
	}

	session := NewSession(uuid.NewString(),
		WithNow(s.opts.Now),
		WithSecondsPerQuestion(s.opts.SecondsPerQuestion),
		WithResultHandler(s.publish),
		WithLogger(s.log),
	)
	if err := session.Begin(quiz, userID); err != nil {
		return domain.SessionView{}, err
	}

	s.sessions.Add(session)
	go session.Drive(s.ctx, s.opts.NewTicker())
	return session.View(), nil
}

func (s *QuizService) SelectAnswer(_ context.Context, sessionID string, option int) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session.SelectAnswer(option)
	return session.View(), nil
}

func (s *QuizService) GoToQuestion(_ context.Context, sessionID string, index int) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session.GoToQuestion(index)
	return session.View(), nil
}

func (s *QuizService) Next(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session.Next()
	return session.View(), nil
}

func (s *QuizService) Previous(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	session.Previous()
	return session.View(), nil
}

// Submit is the manual submission path; it is rejected until every question is answered.
func (s *QuizService) Submit(_ context.Context, sessionID string) (domain.Result, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	return session.Submit(false)
}

func (s *QuizService) View(_ context.Context, sessionID string) (domain.SessionView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

func (s *QuizService) Review(_ context.Context, sessionID string) (domain.Review, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return domain.Review{}, err
	}
	return session.Review()
}

// Subscribe returns a channel that receives ticks, state changes and the final result.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionEvent, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon stops an unfinished session without producing a Result.
func (s *QuizService) Abandon(_ context.Context, sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Abandon()
	return nil
}

// Leave releases a client's session: unfinished sessions are abandoned and the session is
// dropped from the repository.
func (s *QuizService) Leave(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Abandon()
	s.sessions.DeleteIfClosed(sessionID)
}

// Close stops every tick pump the service started.
func (s *QuizService) Close() {
	s.cancel()
}

func (s *QuizService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) publish(result domain.Result) {
	if s.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.results.Publish(ctx, result); err != nil {
		s.log.Error().Err(err).
			Str("session_id", result.SessionID).
			Str("result_id", result.ID).
			Msg("publish result failed")
		return
	}
	s.log.Debug().Str("result_id", result.ID).Int("score", result.Score).Msg("result published")
}
