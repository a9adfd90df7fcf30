package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"quiz-session-service/internal/domain"
	queue "quiz-session-service/internal/infra/redis"
)

const (
	DefaultBatchSize    = 50
	DefaultBatchTimeout = 2 * time.Second
	DefaultPollTimeout  = 1 * time.Second
)

// ResultSource is a queue of results awaiting persistence.
type ResultSource interface {
	Pop(ctx context.Context, timeout time.Duration) (domain.Result, error)
	Publish(ctx context.Context, result domain.Result) error
}

// AttemptWriter persists results.
type AttemptWriter interface {
	SaveBatch(ctx context.Context, results []domain.Result) error
	Publish(ctx context.Context, result domain.Result) error
}

type Options struct {
	BatchSize    int
	BatchTimeout time.Duration
	PollTimeout  time.Duration
}

// AttemptWorker drains queued results into the attempt store in batches.
type AttemptWorker struct {
	source ResultSource
	writer AttemptWriter
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

func NewAttemptWorker(source ResultSource, writer AttemptWriter, opts Options, log zerolog.Logger) *AttemptWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &AttemptWorker{
		source: source,
		writer: writer,
		opts:   opts,
		log:    log.With().Str("component", "attempt_worker").Logger(),
		now:    time.Now,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *AttemptWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]domain.Result, 0, w.opts.BatchSize)
	lastFlush := w.now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.opts.BatchSize || w.now().Sub(lastFlush) >= w.opts.BatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = w.now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return nil
		default:
		}

		res, err := w.source.Pop(ctx, w.opts.PollTimeout)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, queue.ErrQueueEmpty) {
				w.log.Error().Err(err).Msg("pop result failed")
			}
			continue
		}
		batch = append(batch, res)
	}
}

// ----------------------------------------------------------------
// Batch insert with per-result fallback
// ----------------------------------------------------------------

func (w *AttemptWorker) flush(ctx context.Context, batch []domain.Result) {
	if len(batch) == 0 {
		return
	}

	err := w.writer.SaveBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("attempts persisted")
		return
	}
	w.log.Warn().Err(err).Msg("bulk attempt insert failed, using fallback")

	for _, res := range batch {
		if err := w.writer.Publish(ctx, res); err != nil {
			w.log.Error().Err(err).Str("result_id", res.ID).Msg("persist attempt failed, requeueing")
			if err := w.source.Publish(ctx, res); err != nil {
				w.log.Error().Err(err).Str("result_id", res.ID).Msg("requeue failed, attempt dropped")
			}
		}
	}
}
