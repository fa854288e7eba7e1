package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
)

// StatsHandler serves dashboard statistics.
type StatsHandler struct {
	statsService   *service.StatsService
	studentService *service.StudentService
	log            zerolog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService, studentService *service.StudentService, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		statsService:   statsService,
		studentService: studentService,
		log:            log.With().Str("component", "stats_handler").Logger(),
	}
}

// MyStats godoc
// GET /api/v1/student/stats
func (h *StatsHandler) MyStats(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	st, err := h.statsService.ForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": st})
}

// StudentStats godoc
// GET /api/v1/admin/stats/students/:id
func (h *StatsHandler) StudentStats(c *gin.Context) {
	studentID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.studentService.GetByID(ctx, studentID); err != nil {
		fail(c, h.log, err)
		return
	}

	st, err := h.statsService.ForStudent(ctx, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": st})
}

// SystemStats godoc
// GET /api/v1/admin/stats/system
func (h *StatsHandler) SystemStats(c *gin.Context) {
	st, err := h.statsService.System(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stats": st})
}
