// Package engine runs the state machine of a single in-progress exam:
// question snapshot, answer capture, countdown and exactly-once submission.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/scoring"
)

// Domain errors. Use errors.Is; the narrower errors wrap the broader ones.
var (
	ErrNotFound           = errors.New("not found")
	ErrPartialCatalogMiss = fmt.Errorf("%w: question catalog could not resolve every exam question", ErrNotFound)
	ErrInvalidState       = errors.New("invalid session state")
	ErrAlreadySubmitted   = fmt.Errorf("%w: session already submitted", ErrInvalidState)
	ErrValidation         = errors.New("validation failed")
	ErrPersistence        = errors.New("attempt persistence failed")
)

// QuestionCatalog resolves question bodies. Missing ids are simply absent
// from the result; the engine decides what a miss means.
type QuestionCatalog interface {
	FetchQuestionsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// AttemptStore persists finalized attempts. CreateAttempt fills in the
// assigned ID and CreatedAt.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, a *model.ExamAttempt) error
}

// Engine creates sessions bound to a catalog and a store.
type Engine struct {
	catalog     QuestionCatalog
	store       AttemptStore
	now         func() time.Time
	passPercent float64
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDefaultPassPercent sets the pass line for exams without usable marks.
func WithDefaultPassPercent(p float64) Option {
	return func(e *Engine) { e.passPercent = p }
}

// New creates an Engine.
func New(catalog QuestionCatalog, store AttemptStore, opts ...Option) *Engine {
	e := &Engine{
		catalog:     catalog,
		store:       store,
		now:         time.Now,
		passPercent: scoring.DefaultPassPercent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start hydrates the exam's questions and returns an active session. The exam
// and question bodies are copied; later catalog edits do not reach the session.
func (e *Engine) Start(ctx context.Context, studentID uuid.UUID, exam *model.Exam) (*Session, error) {
	if exam == nil || len(exam.Questions) == 0 {
		return nil, fmt.Errorf("exam has no questions: %w", ErrNotFound)
	}
	if exam.Duration <= 0 {
		return nil, fmt.Errorf("exam duration must be positive: %w", ErrValidation)
	}

	fetched, err := e.catalog.FetchQuestionsByIDs(ctx, exam.Questions)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	byID := make(map[uuid.UUID]model.Question, len(fetched))
	for _, q := range fetched {
		byID[q.ID] = q
	}

	questions := make([]model.Question, 0, len(exam.Questions))
	var missing []uuid.UUID
	for _, id := range exam.Questions {
		q, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		q.Options = append([]string(nil), q.Options...)
		questions = append(questions, q)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w (%d missing, first %s)", ErrPartialCatalogMiss, len(missing), missing[0])
	}

	snapshot := exam.Clone()
	index := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	return &Session{
		engine:    e,
		id:        uuid.New(),
		studentID: studentID,
		exam:      snapshot,
		threshold: scoring.Threshold(&snapshot, e.passPercent),
		questions: questions,
		index:     index,
		answers:   make(map[uuid.UUID]int),
		startedAt: e.now(),
		remaining: snapshot.DurationSeconds(),
		state:     StateActive,
	}, nil
}
