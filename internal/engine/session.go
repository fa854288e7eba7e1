package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/scoring"
)

// State is the lifecycle position of a session.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSubmitted:
		return "submitted"
	default:
		return "not_started"
	}
}

// MarshalText makes State render as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session is one student's in-progress exam. All mutations are serialized
// under mu; the zero value is NotStarted and rejects every operation.
type Session struct {
	mu sync.Mutex

	engine    *Engine
	id        uuid.UUID
	studentID uuid.UUID
	exam      model.Exam
	threshold float64
	questions []model.Question
	index     map[uuid.UUID]int

	cursor    int
	answers   map[uuid.UUID]int
	startedAt time.Time
	remaining int
	state     State

	attempt *model.ExamAttempt
	result  scoring.Result
	pending bool // attempt scored but not acknowledged by the store
}

// View is a read-only copy of a session's state, safe to hand to clients.
type View struct {
	SessionID     uuid.UUID                  `json:"sessionId"`
	ExamID        uuid.UUID                  `json:"examId"`
	Title         string                     `json:"title"`
	State         State                      `json:"state"`
	Cursor        int                        `json:"cursor"`
	Remaining     int                        `json:"remaining"`
	StartedAt     time.Time                  `json:"startedAt"`
	Questions     []model.QuestionForStudent `json:"questions"`
	Answers       map[uuid.UUID]int          `json:"answers"`
	AnsweredCount int                        `json:"answeredCount"`
}

// TickResult reports the countdown after a tick.
type TickResult struct {
	Remaining     int
	AutoSubmitted bool
	Attempt       *model.ExamAttempt
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// StudentID returns the owning student.
func (s *Session) StudentID() uuid.UUID { return s.studentID }

// ExamID returns the exam being taken.
func (s *Session) ExamID() uuid.UUID { return s.exam.ID }

// Duration returns the exam time limit.
func (s *Session) Duration() time.Duration {
	return time.Duration(s.exam.DurationSeconds()) * time.Second
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the seconds left on the clock.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Progress returns the number of answered questions and the seconds left.
func (s *Session) Progress() (answered, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers), s.remaining
}

// RecordAnswer stores the selected option for a question, replacing any
// earlier choice.
func (s *Session) RecordAnswer(questionID uuid.UUID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	i, ok := s.index[questionID]
	if !ok {
		return fmt.Errorf("question %s is not part of this exam: %w", questionID, ErrNotFound)
	}
	if option < 0 || option >= len(s.questions[i].Options) {
		return fmt.Errorf("option %d out of range [0,%d): %w", option, len(s.questions[i].Options), ErrValidation)
	}

	s.answers[questionID] = option
	return nil
}

// ClearAnswer forgets the answer for a question. Clearing an unanswered
// question is a no-op.
func (s *Session) ClearAnswer(questionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	if _, ok := s.index[questionID]; !ok {
		return fmt.Errorf("question %s is not part of this exam: %w", questionID, ErrNotFound)
	}

	delete(s.answers, questionID)
	return nil
}

// Navigate moves the cursor by delta, clamped to the question range.
func (s *Session) Navigate(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return s.cursor, err
	}
	s.cursor = s.clamp(s.cursor + delta)
	return s.cursor, nil
}

// GoTo moves the cursor to index, clamped to the question range.
func (s *Session) GoTo(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return s.cursor, err
	}
	s.cursor = s.clamp(index)
	return s.cursor, nil
}

// Tick takes elapsed seconds off the clock. When the clock reaches zero the
// session is submitted with reason timeout inside the same critical section,
// so no answer can land after the deadline.
func (s *Session) Tick(ctx context.Context, elapsed int) (TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return TickResult{Remaining: s.remaining}, err
	}
	if elapsed < 0 {
		elapsed = 0
	}

	s.remaining -= elapsed
	if s.remaining > 0 {
		return TickResult{Remaining: s.remaining}, nil
	}
	s.remaining = 0

	attempt, err := s.submitLocked(ctx, model.SubmitReasonTimeout)
	return TickResult{Remaining: 0, AutoSubmitted: true, Attempt: attempt}, err
}

// Submit finalizes the session. Only the first call succeeds; later calls
// return ErrAlreadySubmitted. If the store rejects the attempt the session is
// still terminal and the scored attempt is returned alongside an error
// wrapping ErrPersistence; RetryPersist resends it.
func (s *Session) Submit(ctx context.Context, reason model.SubmitReason) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return nil, err
	}
	return s.submitLocked(ctx, reason)
}

// RetryPersist resends a scored attempt whose first create failed. It never
// re-scores. Calling it after a successful create returns the stored attempt.
func (s *Session) RetryPersist(ctx context.Context) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitted || s.attempt == nil {
		return nil, fmt.Errorf("nothing to persist in state %s: %w", s.state, ErrInvalidState)
	}
	if !s.pending {
		return s.attempt, nil
	}
	return s.attempt, s.persistLocked(ctx)
}

// PendingAttempt returns the scored attempt while it is still awaiting the
// store, or nil.
func (s *Session) PendingAttempt() *model.ExamAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return nil
	}
	return s.attempt
}

// Result returns the scoring outcome of a submitted session.
func (s *Session) Result() (scoring.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == StateSubmitted
}

// Snapshot returns a client-safe copy of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs := make([]model.QuestionForStudent, len(s.questions))
	for i := range s.questions {
		qs[i] = s.questions[i].ForStudent()
	}
	answers := make(map[uuid.UUID]int, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	return View{
		SessionID:     s.id,
		ExamID:        s.exam.ID,
		Title:         s.exam.Title,
		State:         s.state,
		Cursor:        s.cursor,
		Remaining:     s.remaining,
		StartedAt:     s.startedAt,
		Questions:     qs,
		Answers:       answers,
		AnsweredCount: len(answers),
	}
}

func (s *Session) requireActive() error {
	switch s.state {
	case StateActive:
		return nil
	case StateSubmitted:
		return ErrAlreadySubmitted
	default:
		return fmt.Errorf("session is %s: %w", s.state, ErrInvalidState)
	}
}

func (s *Session) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if last := len(s.questions) - 1; i > last {
		return last
	}
	return i
}

func (s *Session) submitLocked(ctx context.Context, reason model.SubmitReason) (*model.ExamAttempt, error) {
	answers := make([]model.AttemptAnswer, len(s.questions))
	for i, q := range s.questions {
		opt, ok := s.answers[q.ID]
		if !ok {
			opt = model.UnansweredOption
		}
		answers[i] = model.AttemptAnswer{QuestionID: q.ID, SelectedOption: opt}
	}

	submittedAt := s.engine.now()
	timeTaken := int(submittedAt.Sub(s.startedAt) / time.Second)
	if timeTaken < 0 {
		timeTaken = 0
	}

	tally := scoring.Score(s.questions, answers)

	s.attempt = &model.ExamAttempt{
		SubmissionID:   uuid.New(),
		ExamID:         s.exam.ID,
		StudentID:      s.studentID,
		Answers:        answers,
		Score:          tally.CorrectAnswers,
		TotalQuestions: tally.TotalQuestions,
		CorrectAnswers: tally.CorrectAnswers,
		StartedAt:      s.startedAt,
		SubmittedAt:    submittedAt,
		TimeTaken:      timeTaken,
		SubmitReason:   reason,
	}
	s.result = scoring.Evaluate(tally, s.threshold)
	s.state = StateSubmitted
	s.pending = true

	return s.attempt, s.persistLocked(ctx)
}

// persistLocked hands the attempt to the store. The create is not cancelled
// with the caller's context: once started it must complete or fail outright.
func (s *Session) persistLocked(ctx context.Context) error {
	if err := s.engine.store.CreateAttempt(context.WithoutCancel(ctx), s.attempt); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.pending = false
	return nil
}
