package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
	queue "quiz-session-service/internal/infra/redis"
)

type fakeWriter struct {
	mu        sync.Mutex
	saved     []domain.Result
	batches   int
	failBatch bool
	failIDs   map[string]bool
}

func (f *fakeWriter) SaveBatch(_ context.Context, results []domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return errors.New("batch rejected")
	}
	f.batches++
	f.saved = append(f.saved, results...)
	return nil
}

func (f *fakeWriter) Publish(_ context.Context, result domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[result.ID] {
		return errors.New("row rejected")
	}
	f.saved = append(f.saved, result)
	return nil
}

func (f *fakeWriter) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func newQueue(t *testing.T) (*miniredis.Miniredis, *queue.ResultQueue) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, queue.NewResultQueue(client, "")
}

func TestWorkerPersistsQueuedResults(t *testing.T) {
	_, q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := q.Publish(ctx, domain.Result{ID: id, UserID: "u1"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	writer := &fakeWriter{}
	w := NewAttemptWorker(q, writer, Options{BatchSize: 2, BatchTimeout: 10 * time.Millisecond, PollTimeout: time.Second}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		_ = w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for writer.savedCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("worker persisted %d of 3 results", writer.savedCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestFlushFallsBackAndRequeues(t *testing.T) {
	_, q := newQueue(t)
	writer := &fakeWriter{failBatch: true, failIDs: map[string]bool{"bad": true}}
	w := NewAttemptWorker(q, writer, Options{}, zerolog.Nop())

	ctx := context.Background()
	w.flush(ctx, []domain.Result{{ID: "good"}, {ID: "bad"}})

	if writer.savedCount() != 1 || writer.saved[0].ID != "good" {
		t.Fatalf("expected only the good result saved, got %+v", writer.saved)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected failed result requeued, queue length %d", n)
	}
	requeued, err := q.Pop(ctx, time.Second)
	if err != nil || requeued.ID != "bad" {
		t.Fatalf("expected bad result requeued, got %+v (%v)", requeued, err)
	}
}
