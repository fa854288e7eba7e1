package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
	"github.com/stemsi/cbt-backend/internal/validator"
)

// AttemptHandler serves stored attempts to students and admins.
type AttemptHandler struct {
	attemptService *service.AttemptService
	studentService *service.StudentService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, studentService *service.StudentService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		studentService: studentService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// ListMyAttempts godoc
// GET /api/v1/student/attempts
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	attempts, err := h.attemptService.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// ListAttempts godoc
// GET /api/v1/admin/attempts?page=&per_page=
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempts, pagination, err := h.attemptService.List(c.Request.Context(), q.Page, q.PerPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// ListStudentAttempts godoc
// GET /api/v1/admin/attempts/student/:id
func (h *AttemptHandler) ListStudentAttempts(c *gin.Context) {
	studentID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.studentService.GetByID(ctx, studentID); err != nil {
		fail(c, h.log, err)
		return
	}

	attempts, err := h.attemptService.ListByStudent(ctx, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/admin/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}
