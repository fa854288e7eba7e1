package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/model"
)

// SessionRegistry coordinates live sessions across server instances.
type SessionRegistry interface {
	// Claim reserves the student's single live-session slot. It reports
	// false when another session already holds it.
	Claim(ctx context.Context, studentID, examID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, studentID uuid.UUID) error
	Publish(ctx context.Context, event model.MonitorEvent) error
	// EnqueuePersist hands a scored attempt the store rejected to the retry worker.
	EnqueuePersist(ctx context.Context, attempt *model.ExamAttempt) error
}

// RedisSessionRegistry implements SessionRegistry on Redis keys, a list
// queue and pub/sub channels.
type RedisSessionRegistry struct {
	rdb *redis.Client
}

// NewRedisSessionRegistry creates a RedisSessionRegistry.
func NewRedisSessionRegistry(rdb *redis.Client) *RedisSessionRegistry {
	return &RedisSessionRegistry{rdb: rdb}
}

// Claim sets student:<id>:active_exam if absent.
func (r *RedisSessionRegistry) Claim(ctx context.Context, studentID, examID uuid.UUID, ttl time.Duration) (bool, error) {
	key := config.CacheKey.StudentActiveExamKey(studentID.String())
	return r.rdb.SetNX(ctx, key, examID.String(), ttl).Result()
}

// IsClaimed reports whether the student's slot is taken.
func (r *RedisSessionRegistry) IsClaimed(ctx context.Context, studentID uuid.UUID) (bool, error) {
	n, err := r.rdb.Exists(ctx, config.CacheKey.StudentActiveExamKey(studentID.String())).Result()
	return n > 0, err
}

// Release frees the student's slot.
func (r *RedisSessionRegistry) Release(ctx context.Context, studentID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.StudentActiveExamKey(studentID.String())).Err()
}

// Publish sends the event to the exam's monitor channel.
func (r *RedisSessionRegistry) Publish(ctx context.Context, event model.MonitorEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(event.ExamID.String()), raw).Err()
}

// EnqueuePersist pushes the attempt onto the persist queue as a fresh job.
func (r *RedisSessionRegistry) EnqueuePersist(ctx context.Context, attempt *model.ExamAttempt) error {
	raw, err := json.Marshal(model.PersistJob{Attempt: *attempt})
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return r.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err()
}
