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

// Student management errors.
var (
	ErrStudentHasAttempts = errors.New("student has stored attempts")
	ErrStudentInExam      = errors.New("student is taking an exam")
)

// StudentStore is the subset of the user repository student management needs.
type StudentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListByRolePaginated(ctx context.Context, role model.Role, limit, offset int) ([]model.User, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountCreator stores new accounts with hashed passwords.
type AccountCreator interface {
	CreateUser(ctx context.Context, username, name, email, password string, role model.Role) (*model.User, error)
}

// SessionClaims reports whether a student holds a live exam session on any
// instance.
type SessionClaims interface {
	IsClaimed(ctx context.Context, studentID uuid.UUID) (bool, error)
}

// StudentService handles the admin view of student accounts.
type StudentService struct {
	users    StudentStore
	accounts AccountCreator
	claims   SessionClaims
	log      zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(users StudentStore, accounts AccountCreator, claims SessionClaims, log zerolog.Logger) *StudentService {
	return &StudentService{
		users:    users,
		accounts: accounts,
		claims:   claims,
		log:      log.With().Str("component", "student_service").Logger(),
	}
}

// List retrieves students ordered by name with pagination.
func (s *StudentService) List(ctx context.Context, page, perPage int) ([]model.User, *response.Pagination, error) {
	if perPage > 100 {
		perPage = 100
	}
	p := response.NewPagination(page, perPage, 0)

	students, total, err := s.users.ListByRolePaginated(ctx, model.RoleStudent, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, nil, err
	}
	if students == nil {
		students = []model.User{}
	}
	return students, response.NewPagination(p.Page, p.PerPage, total), nil
}

// GetByID returns a student account. Admin accounts are not students.
func (s *StudentService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u.Role != model.RoleStudent {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Create adds a student account on an admin's behalf.
func (s *StudentService) Create(ctx context.Context, req *model.CreateStudentRequest) (*model.User, error) {
	u, err := s.accounts.CreateUser(ctx, req.Username, req.Name, req.Email, req.Password, model.RoleStudent)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("student_id", u.ID.String()).Str("username", u.Username).Msg("Student created")
	return u, nil
}

// Delete removes a student who has no stored attempts and is not taking an
// exam. Attempts are never deleted, so statistics stay re-derivable.
func (s *StudentService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	claimed, err := s.claims.IsClaimed(ctx, id)
	if err != nil {
		return fmt.Errorf("check session claim: %w", err)
	}
	if claimed {
		return ErrStudentInExam
	}

	if err := s.users.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return ErrUserNotFound
		case errors.Is(err, repository.ErrInUse):
			return ErrStudentHasAttempts
		}
		return err
	}

	s.log.Info().Str("student_id", id.String()).Msg("Student deleted")
	return nil
}
