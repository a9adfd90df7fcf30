package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

// DefaultResultQueue is the list that buffers results until they are persisted.
const DefaultResultQueue = "quiz:attempts:persist"

// ErrQueueEmpty is returned by Pop when no result arrived before the timeout.
var ErrQueueEmpty = errors.New("result queue empty")

// ResultQueue is an app.ResultSink that pushes results onto a Redis list for a worker to drain.
type ResultQueue struct {
	client *redis.Client
	key    string
}

func NewResultQueue(client *redis.Client, key string) *ResultQueue {
	if key == "" {
		key = DefaultResultQueue
	}
	return &ResultQueue{client: client, key: key}
}

func (q *ResultQueue) Publish(ctx context.Context, result domain.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next queued result.
func (q *ResultQueue) Pop(ctx context.Context, timeout time.Duration) (domain.Result, error) {
	item, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Result{}, ErrQueueEmpty
	}
	if err != nil {
		return domain.Result{}, err
	}
	if len(item) < 2 {
		return domain.Result{}, ErrQueueEmpty
	}
	var res domain.Result
	if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
		return domain.Result{}, fmt.Errorf("decode queued result: %w", err)
	}
	return res, nil
}

// Len reports the number of results waiting.
func (q *ResultQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
