package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/engine"
	"github.com/stemsi/cbt-backend/internal/response"
	"github.com/stemsi/cbt-backend/internal/service"
	ws "github.com/stemsi/cbt-backend/internal/websocket"
)

const wsSubmitTimeout = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a student's running exam over WebSocket.
type WSHandler struct {
	sessions SessionManager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionManager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session?token=
// Sends the session state on connect, then countdown ticks and the final
// result. Clients answer, navigate and submit through actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	studentID := claims.UserID

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close("bye")

	events, cancel, err := h.sessions.Watch(studentID)
	if err != nil {
		_, code := classify(err)
		_ = conn.WriteError(string(code), response.GetMessage(code))
		return
	}
	defer cancel()

	view, err := h.sessions.Snapshot(studentID)
	if err != nil {
		_, code := classify(err)
		_ = conn.WriteError(string(code), response.GetMessage(code))
		return
	}
	if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: view}); err != nil {
		return
	}

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("exam_id", view.ExamID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	done := make(chan struct{})
	go h.pump(conn, events, done, wsLog)

	for {
		var msg ws.Request
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.dispatch(conn, studentID, &msg, wsLog)
	}

	cancel()
	<-done
}

// pump forwards session events and keeps the connection alive. It returns
// after the submitted event or when the event channel is closed.
func (h *WSHandler) pump(conn *ws.Conn, events <-chan service.SessionEvent, done chan<- struct{}, log zerolog.Logger) {
	defer close(done)

	ping := time.NewTicker(ws.PingPeriod())
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case service.EventTick:
				if err := conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, Remaining: ev.Remaining}); err != nil {
					return
				}
			case service.EventSubmitted:
				_ = conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: ev.Result})
				log.Info().Msg("Session finished, closing stream")
				_ = conn.Close("submitted")
				return
			}
		case <-ping.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(conn *ws.Conn, studentID uuid.UUID, msg *ws.Request, log zerolog.Logger) {
	switch msg.Action {
	case ws.ActionAnswer:
		if msg.QuestionID == uuid.Nil || msg.Option == nil {
			h.writeFailure(conn, response.ErrValidation)
			return
		}
		if err := h.sessions.RecordAnswer(studentID, msg.QuestionID, *msg.Option); err != nil {
			h.writeErr(conn, err)
			return
		}
		_ = conn.WriteTyped(ws.AnsweredResponse{Event: ws.EventAnswered, QuestionID: msg.QuestionID, Option: *msg.Option})

	case ws.ActionClear:
		if msg.QuestionID == uuid.Nil {
			h.writeFailure(conn, response.ErrValidation)
			return
		}
		if err := h.sessions.ClearAnswer(studentID, msg.QuestionID); err != nil {
			h.writeErr(conn, err)
			return
		}
		_ = conn.WriteTyped(ws.AnsweredResponse{Event: ws.EventAnswered, QuestionID: msg.QuestionID, Option: -1})

	case ws.ActionNavigate, ws.ActionGoTo:
		var (
			cursor int
			err    error
		)
		if msg.Action == ws.ActionGoTo {
			cursor, err = h.sessions.GoTo(studentID, msg.Index)
		} else {
			cursor, err = h.sessions.Navigate(studentID, msg.Delta)
		}
		if err != nil {
			h.writeErr(conn, err)
			return
		}
		_ = conn.WriteTyped(ws.CursorResponse{Event: ws.EventCursor, Cursor: cursor})

	case ws.ActionSubmit:
		// The result reaches the client through the submitted event.
		ctx, cancel := context.WithTimeout(context.Background(), wsSubmitTimeout)
		defer cancel()
		if _, err := h.sessions.Submit(ctx, studentID); err != nil && !errors.Is(err, engine.ErrPersistence) {
			h.writeErr(conn, err)
		}

	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})

	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		h.writeFailure(conn, response.ErrInvalidPayload)
	}
}

func (h *WSHandler) writeErr(conn *ws.Conn, err error) {
	_, code := classify(err)
	h.writeFailure(conn, code)
}

func (h *WSHandler) writeFailure(conn *ws.Conn, code response.ErrCode) {
	_ = conn.WriteError(string(code), response.GetMessage(code))
}
