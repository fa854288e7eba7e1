package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/stats"
	"golang.org/x/sync/errgroup"
)

// StatsService aggregates stored attempts into dashboard statistics.
type StatsService struct {
	attemptRepo *repository.AttemptRepository
	exams       *ExamService
}

// NewStatsService creates a new StatsService.
func NewStatsService(attemptRepo *repository.AttemptRepository, exams *ExamService) *StatsService {
	return &StatsService{attemptRepo: attemptRepo, exams: exams}
}

// ForStudent summarises one student's attempts.
func (s *StatsService) ForStudent(ctx context.Context, studentID uuid.UUID) (stats.StudentStats, error) {
	attempts, th, err := s.load(ctx, func(ctx context.Context) ([]model.ExamAttempt, error) {
		return s.attemptRepo.ListByStudent(ctx, studentID)
	})
	if err != nil {
		return stats.StudentStats{}, err
	}
	return stats.PerStudent(attempts, th), nil
}

// System summarises every attempt in the system.
func (s *StatsService) System(ctx context.Context) (stats.SystemStats, error) {
	attempts, th, err := s.load(ctx, s.attemptRepo.ListAll)
	if err != nil {
		return stats.SystemStats{}, err
	}
	return stats.PerSystem(attempts, th), nil
}

// load fetches attempts and pass thresholds concurrently.
func (s *StatsService) load(
	ctx context.Context,
	fetch func(context.Context) ([]model.ExamAttempt, error),
) ([]model.ExamAttempt, stats.Thresholds, error) {
	var (
		attempts []model.ExamAttempt
		th       stats.Thresholds
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempts, err = fetch(gctx)
		return err
	})
	g.Go(func() (err error) {
		th, err = s.exams.Thresholds(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, stats.Thresholds{}, err
	}
	return attempts, th, nil
}
