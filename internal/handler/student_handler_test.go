package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
)

// fakeStudents returns canned errors and records the last create request.
type fakeStudents struct {
	createErr error
	deleteErr error

	created *model.CreateStudentRequest
	deleted uuid.UUID
}

func (f *fakeStudents) List(context.Context, int, int) ([]model.User, *response.Pagination, error) {
	return []model.User{}, response.NewPagination(1, 20, 0), nil
}

func (f *fakeStudents) GetByID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, service.ErrUserNotFound
}

func (f *fakeStudents) Create(_ context.Context, req *model.CreateStudentRequest) (*model.User, error) {
	f.created = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.User{ID: uuid.New(), Username: req.Username, Name: req.Name, Role: model.RoleStudent}, nil
}

func (f *fakeStudents) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.deleteErr
}

func newStudentRouter(f *fakeStudents) *gin.Engine {
	h := NewStudentHandler(f, zerolog.Nop())
	r := gin.New()
	r.POST("/students", h.CreateStudent)
	r.DELETE("/students/:id", h.DeleteStudent)
	return r
}

const validStudent = `{"username":"rina","name":"Rina","email":"rina@example.com","password":"rahasia1"}`

func TestStudentHandler_Create(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"created", validStudent, nil, http.StatusCreated, ""},
		{"username taken", validStudent, service.ErrUsernameTaken, http.StatusConflict, response.ErrUsernameTaken},
		{"short password", `{"username":"rina","name":"Rina","email":"rina@example.com","password":"123"}`, nil, http.StatusBadRequest, response.ErrValidation},
		{"bad email", `{"username":"rina","name":"Rina","email":"rina","password":"rahasia1"}`, nil, http.StatusBadRequest, response.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStudents{createErr: tt.err}
			w, env := do(newStudentRouter(f), http.MethodPost, "/students", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := errCode(env); got != tt.wantErr {
				t.Fatalf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestStudentHandler_CreatePassesPayload(t *testing.T) {
	f := &fakeStudents{}
	if w, _ := do(newStudentRouter(f), http.MethodPost, "/students", validStudent); w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if f.created == nil || f.created.Username != "rina" || f.created.Password != "rahasia1" {
		t.Fatalf("create request = %+v", f.created)
	}
}

func TestStudentHandler_Delete(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"deleted", nil, http.StatusOK, ""},
		{"has attempts", service.ErrStudentHasAttempts, http.StatusConflict, response.ErrDependencyExists},
		{"taking an exam", service.ErrStudentInExam, http.StatusConflict, response.ErrConflict},
		{"unknown student", service.ErrUserNotFound, http.StatusNotFound, response.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeStudents{deleteErr: tt.err}
			id := uuid.New()
			w, env := do(newStudentRouter(f), http.MethodDelete, "/students/"+id.String(), "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := errCode(env); got != tt.wantErr {
				t.Fatalf("code = %q, want %q", got, tt.wantErr)
			}
			if f.deleted != id {
				t.Fatalf("deleted %s, want %s", f.deleted, id)
			}
		})
	}
}

func TestStudentHandler_DeleteInvalidID(t *testing.T) {
	f := &fakeStudents{}
	w, env := do(newStudentRouter(f), http.MethodDelete, "/students/not-a-uuid", "")
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrInvalidID {
		t.Fatalf("status = %d code = %q", w.Code, errCode(env))
	}
	if f.deleted != uuid.Nil {
		t.Fatal("service must not be called")
	}
}
