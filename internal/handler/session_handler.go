package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
	"github.com/stemsi/cbt-backend/internal/validator"
)

// SessionManager is the subset of service.SessionManager the HTTP and
// WebSocket handlers drive.
type SessionManager interface {
	Start(ctx context.Context, studentID, examID uuid.UUID) (engine.View, error)
	Snapshot(studentID uuid.UUID) (engine.View, error)
	RecordAnswer(studentID, questionID uuid.UUID, option int) error
	ClearAnswer(studentID, questionID uuid.UUID) error
	Navigate(studentID uuid.UUID, delta int) (int, error)
	GoTo(studentID uuid.UUID, index int) (int, error)
	Submit(ctx context.Context, studentID uuid.UUID) (service.SubmitResult, error)
	Watch(studentID uuid.UUID) (<-chan service.SessionEvent, func(), error)
}

// AnswerRequest selects an option for one question.
type AnswerRequest struct {
	Option *int `json:"option" binding:"required"`
}

// NavigateRequest moves the cursor either relatively or to an absolute index.
type NavigateRequest struct {
	Delta *int `json:"delta" binding:"required_without=Index"`
	Index *int `json:"index" binding:"required_without=Delta"`
}

// SessionHandler serves a student's running exam.
type SessionHandler struct {
	sessions SessionManager
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionManager, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// StartExam godoc
// POST /api/v1/student/exams/:id/start
// Starts a timed session for an active exam.
func (h *SessionHandler) StartExam(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.sessions.Start(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) && !errors.Is(err, engine.ErrPartialCatalogMiss) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestions)
			return
		}
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": view})
}

// GetSession godoc
// GET /api/v1/student/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := h.sessions.Snapshot(claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// SaveAnswer godoc
// PUT /api/v1/student/session/answers/:question_id
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}

	var req AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessions.RecordAnswer(claims.UserID, questionID, *req.Option); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questionId": questionID, "option": *req.Option})
}

// ClearAnswer godoc
// DELETE /api/v1/student/session/answers/:question_id
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	questionID, ok := paramUUID(c, "question_id")
	if !ok {
		return
	}

	if err := h.sessions.ClearAnswer(claims.UserID, questionID); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questionId": questionID, "option": -1})
}

// Navigate godoc
// POST /api/v1/student/session/navigate
// Body is either {"delta": n} or {"index": i}; the cursor is clamped.
func (h *SessionHandler) Navigate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var (
		cursor int
		err    error
	)
	if req.Index != nil {
		cursor, err = h.sessions.GoTo(claims.UserID, *req.Index)
	} else {
		cursor, err = h.sessions.Navigate(claims.UserID, *req.Delta)
	}
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cursor": cursor})
}

// Submit godoc
// POST /api/v1/student/session/submit
// Finalizes the session. A scored attempt that could not be stored is still
// returned, with PERSISTENCE_FAILURE, since it has been queued for retry.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	res, err := h.sessions.Submit(c.Request.Context(), claims.UserID)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, res)
	case errors.Is(err, engine.ErrPersistence):
		h.log.Warn().Err(err).Str("student_id", claims.UserID.String()).Msg("Submission scored but not stored")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrPersistenceFailure, res)
	default:
		fail(c, h.log, err)
	}
}
