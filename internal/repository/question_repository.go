package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/cbt-backend/internal/model"
)

const questionColumns = `id, question, options, correct_answer, subject, difficulty, created_by, created_at, updated_at`

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row, q *model.Question) error {
	return row.Scan(&q.ID, &q.Question, &q.Options, &q.CorrectAnswer, &q.Subject,
		&q.Difficulty, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
}

// GetByID retrieves a question by its UUID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := scanQuestion(r.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id), q)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// FetchByIDs returns the questions matching ids, ordered as in ids.
// Unknown ids are skipped; duplicates in ids yield duplicate entries.
func (r *QuestionRepository) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[uuid.UUID]model.Question, len(ids))
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		found[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := found[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// ListPaginated retrieves questions newest first, optionally filtered by subject.
func (r *QuestionRepository) ListPaginated(ctx context.Context, subject string, limit, offset int) ([]model.Question, int, error) {
	where := ""
	var args []any
	if subject != "" {
		args = append(args, subject)
		where = ` WHERE subject = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM questions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		questionColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question, options, correct_answer, subject, difficulty, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		q.Question, q.Options, q.CorrectAnswer, q.Subject, q.Difficulty, q.CreatedBy,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// Update replaces a question's content. Returns pgx.ErrNoRows if it does not exist.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`UPDATE questions
		 SET question = $1, options = $2, correct_answer = $3, subject = $4, difficulty = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING created_by, created_at, updated_at`,
		q.Question, q.Options, q.CorrectAnswer, q.Subject, q.Difficulty, q.ID,
	).Scan(&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
}

// Delete removes a question and detaches it from every exam that lists it.
// Returns the ids of the exams that were modified.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE exams SET question_ids = array_remove(question_ids, $1), updated_at = NOW()
		 WHERE $1 = ANY(question_ids)
		 RETURNING id`, id)
	if err != nil {
		return nil, err
	}
	examIDs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}

	return examIDs, tx.Commit(ctx)
}
