package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
)

const keepAliveInterval = 30 * time.Second

// MonitorHandler streams live exam progress to admins over SSE.
type MonitorHandler struct {
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(examService *service.ExamService, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Sends a snapshot of the sessions running on this instance, then forwards
// started, answered and submitted events from every instance.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	if _, err := h.examService.GetByID(reqCtx, examID); err != nil {
		fail(c, h.log, err)
		return
	}

	events, err := h.monitorService.Subscribe(reqCtx, examID)
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	h.writeEvent(c, "snapshot", h.monitorService.Snapshot(examID))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin detached from live monitor")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.writeEvent(c, string(ev.Type), ev)
		case <-keepAlive.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) writeEvent(c *gin.Context, name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode monitor event")
		return
	}
	_, _ = c.Writer.WriteString("event: " + name + "\ndata: ")
	_, _ = c.Writer.Write(data)
	_, _ = c.Writer.WriteString("\n\n")
	c.Writer.Flush()
}
