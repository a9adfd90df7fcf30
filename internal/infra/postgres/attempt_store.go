package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-session-service/internal/domain"
)

// Open connects bun to Postgres at dsn.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID                 string             `bun:"id,pk"`
	SessionID          string             `bun:"session_id"`
	QuizID             string             `bun:"quiz_id"`
	UserID             string             `bun:"user_id"`
	Answers            []domain.Selection `bun:"answers,type:jsonb"`
	PerQuestionCorrect []bool             `bun:"per_question_correct,array"`
	Score              int                `bun:"score"`
	CorrectCount       int                `bun:"correct_count"`
	QuestionCount      int                `bun:"question_count"`
	Forced             bool               `bun:"forced"`
	TimeRemaining      int                `bun:"time_remaining_seconds"`
	CompletedAt        time.Time          `bun:"completed_at"`
}

func toRow(r domain.Result) attemptRow {
	return attemptRow{
		ID:                 r.ID,
		SessionID:          r.SessionID,
		QuizID:             r.QuizID,
		UserID:             r.UserID,
		Answers:            r.Answers,
		PerQuestionCorrect: r.PerQuestionCorrect,
		Score:              r.Score,
		CorrectCount:       r.CorrectCount,
		QuestionCount:      r.QuestionCount,
		Forced:             r.Forced,
		TimeRemaining:      r.TimeRemainingAtSubmit,
		CompletedAt:        r.CompletedAt,
	}
}

func (row attemptRow) result() domain.Result {
	return domain.Result{
		ID:                    row.ID,
		SessionID:             row.SessionID,
		QuizID:                row.QuizID,
		UserID:                row.UserID,
		Answers:               row.Answers,
		PerQuestionCorrect:    row.PerQuestionCorrect,
		Score:                 row.Score,
		CorrectCount:          row.CorrectCount,
		QuestionCount:         row.QuestionCount,
		Forced:                row.Forced,
		TimeRemainingAtSubmit: row.TimeRemaining,
		CompletedAt:           row.CompletedAt,
	}
}

// AttemptStore persists results in quiz_attempts. Inserts are idempotent on the result ID,
// so a requeued result is never stored twice.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Publish stores a single result; it lets the store act as an app.ResultSink directly.
func (s *AttemptStore) Publish(ctx context.Context, result domain.Result) error {
	return s.SaveBatch(ctx, []domain.Result{result})
}

// SaveBatch stores results in one multi-row insert.
func (s *AttemptStore) SaveBatch(ctx context.Context, results []domain.Result) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]attemptRow, len(results))
	for i, r := range results {
		rows[i] = toRow(r)
	}
	if _, err := s.db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert attempts: %w", err)
	}
	return nil
}

// ListByUser returns a user's attempts, newest first.
func (s *AttemptStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Result, error) {
	var rows []attemptRow
	q := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]domain.Result, len(rows))
	for i, row := range rows {
		out[i] = row.result()
	}
	return out, nil
}
