package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/stats"
)

// Exam errors.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamNotActive      = errors.New("exam is not active")
	ErrExamInUse          = errors.New("exam already has attempts")
	ErrDuplicateQuestions = errors.New("exam lists the same question twice")
)

const activeExamsTTL = 5 * time.Minute

// ExamService handles exam business logic and Redis caching of exam
// definitions. Definitions are read on every session start, so active exams
// are served from Redis and refreshed on every write.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	passPercent  float64
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	passPercent float64,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		passPercent:  passPercent,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID returns an exam definition, from cache when possible.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamPayloadKey(id.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var exam model.Exam
		if jsonErr := json.Unmarshal(data, &exam); jsonErr == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt exam cache entry, reloading")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache unavailable, falling back to database")
	}

	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	if exam.IsActive {
		if err := s.warm(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam")
		}
	}
	return exam, nil
}

// List retrieves exams with pagination.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)

	exams, total, err := s.examRepo.ListPaginated(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, response.NewPagination(p.Page, p.PerPage, total), nil
}

// ListActive returns the exams students may start.
func (s *ExamService) ListActive(ctx context.Context) ([]model.Exam, error) {
	key := config.CacheKey.ActiveExamsKey()
	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var exams []model.Exam
		if json.Unmarshal(data, &exams) == nil {
			return exams, nil
		}
	}

	exams, err := s.examRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	if data, err := json.Marshal(exams); err == nil {
		if err := s.rdb.Set(ctx, key, data, activeExamsTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache active exam list")
		}
	}
	return exams, nil
}

// Create validates and stores a new exam.
func (s *ExamService) Create(ctx context.Context, req *model.ExamRequest, createdBy uuid.UUID) (*model.Exam, error) {
	exam := examFromRequest(req)
	exam.CreatedBy = &createdBy

	if err := s.validateQuestions(ctx, exam.Questions); err != nil {
		return nil, err
	}
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, err
	}

	s.InvalidateCache(ctx, exam.ID)
	s.log.Info().Str("exam_id", exam.ID.String()).Int("questions", len(exam.Questions)).Msg("Exam created")
	return exam, nil
}

// Update replaces an exam definition. Running sessions keep their snapshot.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.ExamRequest) (*model.Exam, error) {
	exam := examFromRequest(req)
	exam.ID = id

	if req.IsActive == nil {
		existing, err := s.examRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrExamNotFound
			}
			return nil, err
		}
		exam.IsActive = existing.IsActive
	}

	if err := s.validateQuestions(ctx, exam.Questions); err != nil {
		return nil, err
	}
	if err := s.examRepo.Update(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	s.InvalidateCache(ctx, id)
	return exam, nil
}

// SetActive opens or closes an exam for students.
func (s *ExamService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.examRepo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return err
	}

	s.InvalidateCache(ctx, id)
	s.log.Info().Str("exam_id", id.String()).Bool("active", active).Msg("Exam activation changed")
	return nil
}

// Delete removes an exam that nobody has attempted yet.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.examRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrExamNotFound
		case errors.Is(err, repository.ErrInUse):
			return ErrExamInUse
		}
		return err
	}

	s.InvalidateCache(ctx, id)
	return nil
}

// All returns every exam, active or not.
func (s *ExamService) All(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.examRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// Thresholds returns the pass line of every exam for statistics.
func (s *ExamService) Thresholds(ctx context.Context) (stats.Thresholds, error) {
	exams, err := s.All(ctx)
	if err != nil {
		return stats.Thresholds{}, err
	}
	return stats.NewThresholds(exams, s.passPercent), nil
}

// PassPercent is the fallback pass line for exams without usable marks.
func (s *ExamService) PassPercent() float64 {
	return s.passPercent
}

// InvalidateCache drops cached definitions and the active list. Failures are
// logged only; the next read falls back to PostgreSQL.
func (s *ExamService) InvalidateCache(ctx context.Context, ids ...uuid.UUID) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, config.CacheKey.ActiveExamsKey())
	for _, id := range ids {
		keys = append(keys, config.CacheKey.ExamPayloadKey(id.String()))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Int("keys", len(keys)).Msg("Failed to invalidate exam cache")
	}
}

// PrewarmActive loads all active exams into Redis on application startup so
// the first wave of session starts does not hit PostgreSQL.
func (s *ExamService) PrewarmActive(ctx context.Context) error {
	exams, err := s.examRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No active exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.warm(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) warm(ctx context.Context, exam *model.Exam) error {
	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(exam.ID.String()), data, 0).Err()
}

func (s *ExamService) validateQuestions(ctx context.Context, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrDuplicateQuestions
		}
		seen[id] = struct{}{}
	}

	found, err := s.questionRepo.FetchByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%w: resolved %d of %d", ErrQuestionsMissing, len(found), len(ids))
	}
	return nil
}

func examFromRequest(req *model.ExamRequest) *model.Exam {
	exam := &model.Exam{
		Title:        req.Title,
		Subject:      req.Subject,
		Duration:     req.Duration,
		Questions:    append([]uuid.UUID(nil), req.Questions...),
		TotalMarks:   req.TotalMarks,
		PassingMarks: req.PassingMarks,
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	return exam
}
