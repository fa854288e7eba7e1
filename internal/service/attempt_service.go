package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/scoring"
	"github.com/stemsi/cbt-backend/internal/stats"
	"golang.org/x/sync/errgroup"
)

// ErrAttemptNotFound is returned when an attempt id does not resolve.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptResult is a stored attempt decorated with its verdict.
type AttemptResult struct {
	model.ExamAttempt
	ExamTitle  string  `json:"examTitle"`
	Percentage int     `json:"percentage"`
	Threshold  float64 `json:"threshold"`
	Passed     bool    `json:"passed"`
}

// ExamResults is the admin report of one exam.
type ExamResults struct {
	Exam     *model.Exam     `json:"exam"`
	Summary  stats.ExamStats `json:"summary"`
	Attempts []AttemptResult `json:"attempts"`
}

// AttemptService serves read access to stored attempts.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	exams       *ExamService
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(attemptRepo *repository.AttemptRepository, exams *ExamService) *AttemptService {
	return &AttemptService{attemptRepo: attemptRepo, exams: exams}
}

// GetByID returns one attempt with its verdict.
func (s *AttemptService) GetByID(ctx context.Context, id uuid.UUID) (*AttemptResult, error) {
	var (
		attempt *model.ExamAttempt
		exams   []model.Exam
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempt, err = s.attemptRepo.GetByID(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		exams, err = s.exams.All(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	results := s.decorate([]model.ExamAttempt{*attempt}, exams)
	return &results[0], nil
}

// ListByStudent returns a student's attempts, most recent first.
func (s *AttemptService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]AttemptResult, error) {
	var (
		attempts []model.ExamAttempt
		exams    []model.Exam
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempts, err = s.attemptRepo.ListByStudent(gctx, studentID)
		return err
	})
	g.Go(func() (err error) {
		exams, err = s.exams.All(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.decorate(attempts, exams), nil
}

// List returns all attempts with pagination.
func (s *AttemptService) List(ctx context.Context, page, perPage int) ([]AttemptResult, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)

	var (
		attempts []model.ExamAttempt
		total    int
		exams    []model.Exam
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		attempts, total, err = s.attemptRepo.ListPaginated(gctx, p.PerPage, (p.Page-1)*p.PerPage)
		return err
	})
	g.Go(func() (err error) {
		exams, err = s.exams.All(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return s.decorate(attempts, exams), response.NewPagination(p.Page, p.PerPage, total), nil
}

// ExamResults reports every attempt of one exam and their summary.
func (s *AttemptService) ExamResults(ctx context.Context, examID uuid.UUID) (*ExamResults, error) {
	var (
		exam     *model.Exam
		attempts []model.ExamAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		exam, err = s.exams.GetByID(gctx, examID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = s.attemptRepo.ListByExam(gctx, examID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	threshold := scoring.Threshold(exam, s.exams.PassPercent())
	return &ExamResults{
		Exam:     exam,
		Summary:  stats.PerExam(examID, attempts, threshold),
		Attempts: s.decorate(attempts, []model.Exam{*exam}),
	}, nil
}

func (s *AttemptService) decorate(attempts []model.ExamAttempt, exams []model.Exam) []AttemptResult {
	th := stats.NewThresholds(exams, s.exams.PassPercent())
	titles := make(map[uuid.UUID]string, len(exams))
	for i := range exams {
		titles[exams[i].ID] = exams[i].Title
	}

	out := make([]AttemptResult, len(attempts))
	for i := range attempts {
		threshold := th.For(attempts[i].ExamID)
		res := scoring.ForAttempt(&attempts[i], threshold)
		out[i] = AttemptResult{
			ExamAttempt: attempts[i],
			ExamTitle:   titles[attempts[i].ExamID],
			Percentage:  res.Percentage,
			Threshold:   threshold,
			Passed:      res.Passed,
		}
	}
	return out
}
