package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
)

// ResultLog is an in-process app.ResultSink that keeps every published result.
// It is used when no database is configured.
type ResultLog struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	results []domain.Result
}

func NewResultLog(log zerolog.Logger) *ResultLog {
	return &ResultLog{log: log.With().Str("component", "result_log").Logger()}
}

func (l *ResultLog) Publish(_ context.Context, result domain.Result) error {
	l.mu.Lock()
	l.results = append(l.results, result.Clone())
	l.mu.Unlock()

	l.log.Info().
		Str("result_id", result.ID).
		Str("quiz_id", result.QuizID).
		Str("user_id", result.UserID).
		Int("score", result.Score).
		Bool("forced", result.Forced).
		Msg("attempt recorded")
	return nil
}

// ForUser returns the results recorded for userID in publish order.
func (l *ResultLog) ForUser(userID string) []domain.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Result
	for _, r := range l.results {
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (l *ResultLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.results)
}
