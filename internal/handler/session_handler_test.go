package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/middleware"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
	"github.com/stemsi/cbt-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// fakeSessions records calls and returns canned errors.
type fakeSessions struct {
	startErr  error
	answerErr error
	submitRes service.SubmitResult
	submitErr error

	lastOption int
	lastGoTo   *int
	lastDelta  *int
}

func (f *fakeSessions) Start(ctx context.Context, studentID, examID uuid.UUID) (engine.View, error) {
	if f.startErr != nil {
		return engine.View{}, f.startErr
	}
	return engine.View{ExamID: examID, State: engine.StateActive, Remaining: 60}, nil
}

func (f *fakeSessions) Snapshot(uuid.UUID) (engine.View, error) {
	return engine.View{}, service.ErrNoActiveSession
}

func (f *fakeSessions) RecordAnswer(_, _ uuid.UUID, option int) error {
	f.lastOption = option
	return f.answerErr
}

func (f *fakeSessions) ClearAnswer(_, _ uuid.UUID) error { return f.answerErr }

func (f *fakeSessions) Navigate(_ uuid.UUID, delta int) (int, error) {
	f.lastDelta = &delta
	return delta, nil
}

func (f *fakeSessions) GoTo(_ uuid.UUID, index int) (int, error) {
	f.lastGoTo = &index
	return index, nil
}

func (f *fakeSessions) Submit(context.Context, uuid.UUID) (service.SubmitResult, error) {
	return f.submitRes, f.submitErr
}

func (f *fakeSessions) Watch(uuid.UUID) (<-chan service.SessionEvent, func(), error) {
	return nil, nil, service.ErrNoActiveSession
}

func newSessionRouter(f *fakeSessions) *gin.Engine {
	h := NewSessionHandler(f, zerolog.Nop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{Role: model.RoleStudent, UserID: uuid.New()})
		c.Next()
	})
	r.POST("/exams/:id/start", h.StartExam)
	r.GET("/session", h.GetSession)
	r.PUT("/session/answers/:question_id", h.SaveAnswer)
	r.POST("/session/navigate", h.Navigate)
	r.POST("/session/submit", h.Submit)
	return r
}

func do(r http.Handler, method, target, body string) (*httptest.ResponseRecorder, response.Response) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func errCode(env response.Response) response.ErrCode {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestSessionHandler_StartErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"started", nil, http.StatusCreated, ""},
		{"no questions", fmt.Errorf("exam has no questions: %w", engine.ErrNotFound), http.StatusUnprocessableEntity, response.ErrNoQuestions},
		{"catalog miss", fmt.Errorf("%w (1 missing)", engine.ErrPartialCatalogMiss), http.StatusConflict, response.ErrQuestionsMissing},
		{"already running", service.ErrSessionActive, http.StatusConflict, response.ErrSessionActive},
		{"inactive exam", service.ErrExamNotActive, http.StatusForbidden, response.ErrExamNotActive},
		{"unknown exam", service.ErrExamNotFound, http.StatusNotFound, response.ErrNotFound},
		{"shutting down", service.ErrShuttingDown, http.StatusServiceUnavailable, response.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSessionRouter(&fakeSessions{startErr: tt.err})
			w, env := do(r, http.MethodPost, "/exams/"+uuid.NewString()+"/start", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := errCode(env); got != tt.wantErr {
				t.Fatalf("code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestSessionHandler_InvalidIDs(t *testing.T) {
	r := newSessionRouter(&fakeSessions{})

	w, env := do(r, http.MethodPost, "/exams/not-a-uuid/start", "")
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrInvalidID {
		t.Fatalf("start: status = %d code = %q", w.Code, errCode(env))
	}

	w, env = do(r, http.MethodPut, "/session/answers/nope", `{"option":1}`)
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrInvalidID {
		t.Fatalf("answer: status = %d code = %q", w.Code, errCode(env))
	}
}

func TestSessionHandler_SaveAnswer(t *testing.T) {
	target := "/session/answers/" + uuid.NewString()

	t.Run("records option zero", func(t *testing.T) {
		f := &fakeSessions{lastOption: -1}
		w, _ := do(newSessionRouter(f), http.MethodPut, target, `{"option":0}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		if f.lastOption != 0 {
			t.Fatalf("option = %d, want 0", f.lastOption)
		}
	})

	t.Run("missing option", func(t *testing.T) {
		w, env := do(newSessionRouter(&fakeSessions{}), http.MethodPut, target, `{}`)
		if w.Code != http.StatusBadRequest || errCode(env) != response.ErrValidation {
			t.Fatalf("status = %d code = %q", w.Code, errCode(env))
		}
		if _, ok := env.Error.Fields["option"]; !ok {
			t.Fatalf("fields = %v, want option", env.Error.Fields)
		}
	})

	engineErrs := []struct {
		name     string
		err      error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"out of range", fmt.Errorf("option 9: %w", engine.ErrValidation), http.StatusUnprocessableEntity, response.ErrInvalidAnswerOption},
		{"foreign question", fmt.Errorf("question: %w", engine.ErrNotFound), http.StatusNotFound, response.ErrNotFound},
		{"after submit", engine.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
		{"no session", service.ErrNoActiveSession, http.StatusNotFound, response.ErrNoActiveSession},
	}
	for _, tt := range engineErrs {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(newSessionRouter(&fakeSessions{answerErr: tt.err}), http.MethodPut, target, `{"option":2}`)
			if w.Code != tt.wantCode || errCode(env) != tt.wantErr {
				t.Fatalf("status = %d code = %q, want %d %q", w.Code, errCode(env), tt.wantCode, tt.wantErr)
			}
		})
	}
}

func TestSessionHandler_Navigate(t *testing.T) {
	t.Run("index wins", func(t *testing.T) {
		f := &fakeSessions{}
		w, _ := do(newSessionRouter(f), http.MethodPost, "/session/navigate", `{"index":3}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		if f.lastGoTo == nil || *f.lastGoTo != 3 || f.lastDelta != nil {
			t.Fatalf("goto = %v delta = %v", f.lastGoTo, f.lastDelta)
		}
	})

	t.Run("delta", func(t *testing.T) {
		f := &fakeSessions{}
		w, _ := do(newSessionRouter(f), http.MethodPost, "/session/navigate", `{"delta":-1}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
		if f.lastDelta == nil || *f.lastDelta != -1 {
			t.Fatalf("delta = %v", f.lastDelta)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		w, env := do(newSessionRouter(&fakeSessions{}), http.MethodPost, "/session/navigate", `{}`)
		if w.Code != http.StatusBadRequest || errCode(env) != response.ErrValidation {
			t.Fatalf("status = %d code = %q", w.Code, errCode(env))
		}
	})
}

func TestSessionHandler_Submit(t *testing.T) {
	res := service.SubmitResult{
		Attempt: model.ExamAttempt{Score: 2, TotalQuestions: 4, CorrectAnswers: 2},
	}

	t.Run("stored", func(t *testing.T) {
		res := res
		res.Persisted = true
		w, env := do(newSessionRouter(&fakeSessions{submitRes: res}), http.MethodPost, "/session/submit", "")
		if w.Code != http.StatusOK || env.Error != nil {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
	})

	t.Run("store failed keeps result", func(t *testing.T) {
		f := &fakeSessions{submitRes: res, submitErr: fmt.Errorf("%w: db down", engine.ErrPersistence)}
		w, env := do(newSessionRouter(f), http.MethodPost, "/session/submit", "")
		if w.Code != http.StatusServiceUnavailable || errCode(env) != response.ErrPersistenceFailure {
			t.Fatalf("status = %d code = %q", w.Code, errCode(env))
		}
		data, ok := env.Data.(map[string]interface{})
		if !ok {
			t.Fatalf("data = %T, want object", env.Data)
		}
		attempt, _ := data["attempt"].(map[string]interface{})
		if attempt["score"] != float64(2) {
			t.Fatalf("attempt = %v", attempt)
		}
	})

	t.Run("no session", func(t *testing.T) {
		w, env := do(newSessionRouter(&fakeSessions{submitErr: service.ErrNoActiveSession}), http.MethodPost, "/session/submit", "")
		if w.Code != http.StatusNotFound || errCode(env) != response.ErrNoActiveSession {
			t.Fatalf("status = %d code = %q", w.Code, errCode(env))
		}
	})
}

func TestSessionHandler_GetSessionWithoutSession(t *testing.T) {
	w, env := do(newSessionRouter(&fakeSessions{}), http.MethodGet, "/session", "")
	if w.Code != http.StatusNotFound || errCode(env) != response.ErrNoActiveSession {
		t.Fatalf("status = %d code = %q", w.Code, errCode(env))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   response.ErrCode
	}{
		{engine.ErrAlreadySubmitted, http.StatusConflict, response.ErrAlreadySubmitted},
		{fmt.Errorf("session is submitted: %w", engine.ErrInvalidState), http.StatusConflict, response.ErrInvalidState},
		{engine.ErrPartialCatalogMiss, http.StatusConflict, response.ErrQuestionsMissing},
		{service.ErrExamInUse, http.StatusConflict, response.ErrDependencyExists},
		{service.ErrInvalidCorrectAnswer, http.StatusUnprocessableEntity, response.ErrValidation},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{service.ErrUsernameTaken, http.StatusConflict, response.ErrUsernameTaken},
		{fmt.Errorf("%w: resolved 1 of 2", service.ErrQuestionsMissing), http.StatusUnprocessableEntity, response.ErrQuestionsMissing},
		{fmt.Errorf("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Fatalf("classify = %d %q, want %d %q", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
