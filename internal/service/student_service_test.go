package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
)

func (m *memUsers) ListByRolePaginated(_ context.Context, role model.Role, limit, offset int) ([]model.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := min(offset+limit, total)
	return out[offset:end], total, nil
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinned[id] {
		return repository.ErrInUse
	}
	for name, u := range m.users {
		if u.ID == id {
			delete(m.users, name)
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fixedClaims map[uuid.UUID]bool

func (f fixedClaims) IsClaimed(_ context.Context, id uuid.UUID) (bool, error) {
	return f[id], nil
}

func newTestStudents(t *testing.T, claims fixedClaims) (*StudentService, *AuthService, *memUsers) {
	t.Helper()
	auth, users := newTestAuth(t)
	return NewStudentService(users, auth, claims, zerolog.Nop()), auth, users
}

func TestStudentService_CreateAndList(t *testing.T) {
	students, auth, _ := newTestStudents(t, fixedClaims{})
	ctx := context.Background()

	if _, err := auth.CreateUser(ctx, "admin", "Admin", "", "s3cret!", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	req := &model.CreateStudentRequest{Username: "Rina", Name: "Rina", Email: "rina@example.com", Password: "rahasia1"}
	u, err := students.Create(ctx, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Role != model.RoleStudent || u.Username != "rina" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := auth.Login(ctx, "rina", "rahasia1"); err != nil {
		t.Fatalf("created student cannot log in: %v", err)
	}

	if _, err := students.Create(ctx, req); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate err = %v, want ErrUsernameTaken", err)
	}

	list, page, err := students.List(ctx, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || page.TotalItems != 1 {
		t.Fatalf("list = %d total = %d, want only the student", len(list), page.TotalItems)
	}
}

func TestStudentService_Delete(t *testing.T) {
	ctx := context.Background()
	mk := func(t *testing.T, s *StudentService, name string) uuid.UUID {
		t.Helper()
		u, err := s.Create(ctx, &model.CreateStudentRequest{Username: name, Name: name, Email: name + "@example.com", Password: "rahasia1"})
		if err != nil {
			t.Fatal(err)
		}
		return u.ID
	}

	t.Run("removes a student without attempts", func(t *testing.T) {
		students, _, _ := newTestStudents(t, fixedClaims{})
		id := mk(t, students, "andi")
		if err := students.Delete(ctx, id); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := students.GetByID(ctx, id); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("after delete err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("refuses a student with attempts", func(t *testing.T) {
		students, _, users := newTestStudents(t, fixedClaims{})
		id := mk(t, students, "budi")
		users.pinned[id] = true

		if err := students.Delete(ctx, id); !errors.Is(err, ErrStudentHasAttempts) {
			t.Fatalf("err = %v, want ErrStudentHasAttempts", err)
		}
		if _, err := students.GetByID(ctx, id); err != nil {
			t.Fatalf("student must survive: %v", err)
		}
	})

	t.Run("refuses a student in an exam", func(t *testing.T) {
		claims := fixedClaims{}
		students, _, _ := newTestStudents(t, claims)
		id := mk(t, students, "citra")
		claims[id] = true

		if err := students.Delete(ctx, id); !errors.Is(err, ErrStudentInExam) {
			t.Fatalf("err = %v, want ErrStudentInExam", err)
		}
	})

	t.Run("admins are not students", func(t *testing.T) {
		students, auth, _ := newTestStudents(t, fixedClaims{})
		admin, err := auth.CreateUser(ctx, "root", "Root", "", "s3cret!", model.RoleAdmin)
		if err != nil {
			t.Fatal(err)
		}
		if err := students.Delete(ctx, admin.ID); !errors.Is(err, ErrUserNotFound) {
			t.Fatalf("err = %v, want ErrUserNotFound", err)
		}
	})
}
