package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/cbt-backend/internal/model"
)

const attemptColumns = `id, submission_id, exam_id, student_id, answers, score, total_questions,
	correct_answers, started_at, submitted_at, time_taken, submit_reason, created_at`

// AttemptRepository stores finalized exam attempts. Attempts are append-only.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row, a *model.ExamAttempt) error {
	return row.Scan(&a.ID, &a.SubmissionID, &a.ExamID, &a.StudentID, &a.Answers, &a.Score,
		&a.TotalQuestions, &a.CorrectAnswers, &a.StartedAt, &a.SubmittedAt, &a.TimeTaken,
		&a.SubmitReason, &a.CreatedAt)
}

func collectAttempts(rows pgx.Rows) ([]model.ExamAttempt, error) {
	defer rows.Close()

	var attempts []model.ExamAttempt
	for rows.Next() {
		var a model.ExamAttempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// CreateAttempt inserts a finalized attempt. Re-sending an attempt with an
// already stored submission id is a no-op that fills in the stored id.
func (r *AttemptRepository) CreateAttempt(ctx context.Context, a *model.ExamAttempt) error {
	if a.SubmissionID == uuid.Nil {
		a.SubmissionID = uuid.New()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (submission_id, exam_id, student_id, answers, score, total_questions,
		                            correct_answers, started_at, submitted_at, time_taken, submit_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (submission_id) DO NOTHING
		 RETURNING id, created_at`,
		a.SubmissionID, a.ExamID, a.StudentID, a.Answers, a.Score, a.TotalQuestions,
		a.CorrectAnswers, a.StartedAt, a.SubmittedAt, a.TimeTaken, a.SubmitReason,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already stored by an earlier try.
		return r.pool.QueryRow(ctx,
			`SELECT id, created_at FROM exam_attempts WHERE submission_id = $1`, a.SubmissionID,
		).Scan(&a.ID, &a.CreatedAt)
	}
	return err
}

// CreateBatch inserts several attempts in one round trip. Duplicated
// submission ids are skipped.
func (r *AttemptRepository) CreateBatch(ctx context.Context, attempts []model.ExamAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range attempts {
		a := &attempts[i]
		if a.SubmissionID == uuid.Nil {
			a.SubmissionID = uuid.New()
		}
		batch.Queue(
			`INSERT INTO exam_attempts (submission_id, exam_id, student_id, answers, score, total_questions,
			                            correct_answers, started_at, submitted_at, time_taken, submit_reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (submission_id) DO NOTHING`,
			a.SubmissionID, a.ExamID, a.StudentID, a.Answers, a.Score, a.TotalQuestions,
			a.CorrectAnswers, a.StartedAt, a.SubmittedAt, a.TimeTaken, a.SubmitReason,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range attempts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert attempt %d: %w", i, err)
		}
	}
	return nil
}

// GetByID retrieves one attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id), a)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByStudent returns a student's attempts, most recent first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE student_id = $1
		 ORDER BY submitted_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	return collectAttempts(rows)
}

// ListByExam returns all attempts of one exam, most recent first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 WHERE exam_id = $1
		 ORDER BY submitted_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	return collectAttempts(rows)
}

// ListAll returns every attempt. Used for system-wide statistics.
func (r *AttemptRepository) ListAll(ctx context.Context) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectAttempts(rows)
}

// ListPaginated returns attempts most recent first.
func (r *AttemptRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.ExamAttempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_attempts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts
		 ORDER BY submitted_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	attempts, err := collectAttempts(rows)
	return attempts, total, err
}
