package memory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
)

func TestResultLogKeepsCopies(t *testing.T) {
	log := NewResultLog(zerolog.Nop())
	res := domain.Result{ID: "r1", UserID: "u1", PerQuestionCorrect: []bool{true}}

	if err := log.Publish(context.Background(), res); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_ = log.Publish(context.Background(), domain.Result{ID: "r2", UserID: "u2"})
	res.PerQuestionCorrect[0] = false

	got := log.ForUser("u1")
	if len(got) != 1 || got[0].ID != "r1" || !got[0].PerQuestionCorrect[0] {
		t.Fatalf("unexpected results %+v", got)
	}
	if log.Len() != 2 {
		t.Fatalf("expected 2 results, got %d", log.Len())
	}
}
