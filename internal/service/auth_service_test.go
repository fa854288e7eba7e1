package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
	// pinned marks users referenced by stored attempts.
	pinned map[uuid.UUID]bool
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*model.User), pinned: make(map[uuid.UUID]bool)}
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *u
	return &c, nil
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return repository.ErrDuplicateUsername
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	c := *u
	m.users[u.Username] = &c
	return nil
}

func newTestAuth(t *testing.T) (*AuthService, *memUsers) {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	users := newMemUsers()
	return NewAuthService(cfg, users), users
}

func TestAuth_RegisterThenLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := auth.Register(ctx, &model.RegisterRequest{
		Username: "Budi", Name: "Budi Santoso", Email: "budi@example.com", Password: "rahasia1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.User.Role != model.RoleStudent {
		t.Fatalf("self registration must create a student, got %s", reg.User.Role)
	}
	if reg.User.Username != "budi" {
		t.Fatalf("username should be normalized, got %q", reg.User.Username)
	}

	login, err := auth.Login(ctx, "BUDI", "rahasia1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := auth.ValidateToken(login.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != reg.User.ID || claims.Role != model.RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}

	me, err := auth.Me(ctx, claims.UserID)
	if err != nil || me.Username != "budi" {
		t.Fatalf("me: %v %+v", err, me)
	}
}

func TestAuth_LoginFailures(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	if _, err := auth.CreateUser(ctx, "admin", "Admin", "", "s3cret!", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"unknown user", "ghost", "s3cret!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuth_DuplicateUsername(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	if _, err := auth.CreateUser(ctx, "siti", "Siti", "", "pw1234", model.RoleStudent); err != nil {
		t.Fatal(err)
	}
	_, err := auth.CreateUser(ctx, "SITI", "Siti 2", "", "pw1234", model.RoleStudent)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestAuth_ValidateTokenRejectsForeignSignature(t *testing.T) {
	auth, _ := newTestAuth(t)
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, newMemUsers())

	token, err := other.GenerateToken(&model.User{ID: uuid.New(), Username: "x", Role: model.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}
