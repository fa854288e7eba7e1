package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/response"
)

// Question errors.
var (
	ErrQuestionNotFound     = errors.New("question not found")
	ErrQuestionsMissing     = errors.New("one or more questions do not exist")
	ErrInvalidCorrectAnswer = errors.New("correct answer must index into options")
)

// QuestionService handles question bank business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	exams        *ExamService
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, exams *ExamService, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		exams:        exams,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// List retrieves questions with pagination, optionally filtered by subject.
func (s *QuestionService) List(ctx context.Context, subject string, page, perPage int) ([]model.Question, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)

	questions, total, err := s.questionRepo.ListPaginated(ctx, subject, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}

	return questions, response.NewPagination(p.Page, p.PerPage, total), nil
}

// GetByID retrieves one question including its answer key.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.questionRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	return q, err
}

// FetchQuestionsByIDs returns the questions that exist among ids, in the
// order of ids. It is the catalog the session engine hydrates exams from.
func (s *QuestionService) FetchQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	return s.questionRepo.FetchByIDs(ctx, ids)
}

// GetByIDs is the strict variant of FetchQuestionsByIDs: every id must resolve.
func (s *QuestionService) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionRepo.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(ids) {
		return nil, fmt.Errorf("%w: resolved %d of %d", ErrQuestionsMissing, len(questions), len(ids))
	}
	return questions, nil
}

// Create validates and stores a new question.
func (s *QuestionService) Create(ctx context.Context, req *model.QuestionRequest, createdBy uuid.UUID) (*model.Question, error) {
	q := questionFromRequest(req)
	q.CreatedBy = &createdBy
	if !q.HasValidAnswer() {
		return nil, ErrInvalidCorrectAnswer
	}

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update replaces a question's content. Running sessions keep the snapshot
// they started with.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	q := questionFromRequest(req)
	q.ID = id
	if !q.HasValidAnswer() {
		return nil, ErrInvalidCorrectAnswer
	}

	if err := s.questionRepo.Update(ctx, q); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Delete removes a question and detaches it from every exam listing it.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	examIDs, err := s.questionRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		return err
	}

	if len(examIDs) > 0 {
		s.log.Info().
			Str("question_id", id.String()).
			Int("exams_updated", len(examIDs)).
			Msg("Question detached from exams")
		s.exams.InvalidateCache(ctx, examIDs...)
	}
	return nil
}

func questionFromRequest(req *model.QuestionRequest) *model.Question {
	q := &model.Question{
		Question:   req.Question,
		Options:    append([]string(nil), req.Options...),
		Subject:    req.Subject,
		Difficulty: model.Difficulty(req.Difficulty),
	}
	if req.CorrectAnswer != nil {
		q.CorrectAnswer = *req.CorrectAnswer
	} else {
		q.CorrectAnswer = -1
	}
	return q
}
