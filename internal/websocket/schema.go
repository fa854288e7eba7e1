package websocket

import "github.com/google/uuid"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionNavigate Action = "navigate"
	ActionGoTo     Action = "goto"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is every client message. Fields unused by an action are ignored.
type Request struct {
	Action     Action    `json:"action"`
	QuestionID uuid.UUID `json:"questionId,omitempty"`
	Option     *int      `json:"option,omitempty"`
	Delta      int       `json:"delta,omitempty"`
	Index      int       `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventAnswered  Event = "answered"
	EventCursor    Event = "cursor"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the full session view, sent once on connect.
type StateResponse struct {
	Event   Event       `json:"event"`
	Session interface{} `json:"session"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

type AnsweredResponse struct {
	Event      Event     `json:"event"`
	QuestionID uuid.UUID `json:"questionId"`
	Option     int       `json:"option"` // -1 when cleared
}

type CursorResponse struct {
	Event  Event `json:"event"`
	Cursor int   `json:"cursor"`
}

type SubmittedResponse struct {
	Event  Event       `json:"event"`
	Result interface{} `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
