package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/metrics"
	"github.com/stemsi/cbt-backend/internal/model"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
	AttemptMaxTries     = 10
	AttemptRetryBackoff = 5 * time.Second
)

// AttemptWriter is the part of the attempt store the worker writes through.
// Both calls must skip submission ids that are already stored.
type AttemptWriter interface {
	CreateBatch(ctx context.Context, attempts []model.ExamAttempt) error
	CreateAttempt(ctx context.Context, a *model.ExamAttempt) error
}

// AttemptWorker drains persist_attempts_queue: scored attempts the store
// rejected when the session was submitted. Jobs that keep failing are moved
// to dead_attempts_queue after AttemptMaxTries.
type AttemptWorker struct {
	store AttemptWriter
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAttemptWorker creates a new AttemptWorker.
func NewAttemptWorker(store AttemptWriter, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "attempt_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is done, then flushes what it already popped.
// Call in a goroutine.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]model.PersistJob, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			requeued := w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()

			// Requeued jobs would be popped again at once; give the store time.
			if requeued > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(AttemptRetryBackoff):
				}
			}
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			w.flush(flushCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(AttemptPollTimeout)
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var job model.PersistJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Str("payload", item[1]).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, job)
		}
	}
}

// flush stores the batch and pushes every job that still failed back to
// Redis, either for another round or to the dead queue. It returns the
// number of jobs put back on the persist queue.
func (w *AttemptWorker) flush(ctx context.Context, batch []model.PersistJob) int {
	if len(batch) == 0 {
		return 0
	}

	retry, dead := w.persist(ctx, batch)
	if len(retry) == 0 && len(dead) == 0 {
		return 0
	}

	pipe := w.rdb.Pipeline()
	for _, job := range retry {
		raw, _ := json.Marshal(job)
		pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
	}
	for _, job := range dead {
		raw, _ := json.Marshal(job)
		pipe.RPush(ctx, config.WorkerKey.DeadAttemptsQueue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		// Last copy of these attempts.
		for _, job := range append(retry, dead...) {
			w.log.Error().Err(err).Interface("attempt", job.Attempt).Msg("Failed to requeue attempt")
		}
		return 0
	}
	return len(retry)
}

// persist tries one batched insert and falls back to single inserts. It
// returns the jobs to retry and the jobs that ran out of tries.
func (w *AttemptWorker) persist(ctx context.Context, batch []model.PersistJob) (retry, dead []model.PersistJob) {
	attempts := make([]model.ExamAttempt, len(batch))
	for i := range batch {
		attempts[i] = batch[i].Attempt
	}

	err := w.store.CreateBatch(ctx, attempts)
	if err == nil {
		metrics.PersistRetriesTotal.WithLabelValues("stored").Add(float64(len(batch)))
		w.log.Info().Int("count", len(batch)).Msg("Queued attempts stored")
		return nil, nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch insert failed, using fallback")

	for _, job := range batch {
		err := w.store.CreateAttempt(ctx, &job.Attempt)
		if err == nil {
			metrics.PersistRetriesTotal.WithLabelValues("stored").Inc()
			continue
		}

		job.Tries++
		if job.Tries >= AttemptMaxTries {
			w.log.Error().Err(err).
				Str("submission_id", job.Attempt.SubmissionID.String()).
				Int("tries", job.Tries).
				Msg("Attempt moved to dead queue")
			metrics.PersistRetriesTotal.WithLabelValues("dead").Inc()
			dead = append(dead, job)
			continue
		}
		w.log.Warn().Err(err).
			Str("submission_id", job.Attempt.SubmissionID.String()).
			Int("tries", job.Tries).
			Msg("Attempt insert failed, requeueing")
		metrics.PersistRetriesTotal.WithLabelValues("requeued").Inc()
		retry = append(retry, job)
	}
	return retry, dead
}
