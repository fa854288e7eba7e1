package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/model"
)

// MonitorService streams live exam progress to proctors. Events are fanned
// out through Redis pub/sub so every instance's sessions are visible.
type MonitorService struct {
	rdb      *redis.Client
	sessions *SessionManager
	log      zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(rdb *redis.Client, sessions *SessionManager, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		rdb:      rdb,
		sessions: sessions,
		log:      log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot lists the sessions of an exam running on this instance.
func (s *MonitorService) Snapshot(examID uuid.UUID) []model.MonitorEvent {
	return s.sessions.ActiveInExam(examID)
}

// Subscribe streams monitor events of one exam until ctx is done. The
// returned channel is closed when the subscription ends.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) (<-chan model.MonitorEvent, error) {
	pubsub := s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan model.MonitorEvent, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.MonitorEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn().Err(err).Msg("Dropping malformed monitor event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
