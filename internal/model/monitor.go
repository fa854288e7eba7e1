package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType names a live exam event shown to proctors.
type MonitorEventType string

const (
	MonitorStarted   MonitorEventType = "started"
	MonitorAnswered  MonitorEventType = "answered"
	MonitorSubmitted MonitorEventType = "submitted"
)

// MonitorEvent is published on the exam's monitor channel whenever a
// student's session changes.
type MonitorEvent struct {
	Type          MonitorEventType `json:"type"`
	ExamID        uuid.UUID        `json:"examId"`
	StudentID     uuid.UUID        `json:"studentId"`
	AnsweredCount int              `json:"answeredCount"`
	Remaining     int              `json:"remaining"`
	Score         *int             `json:"score,omitempty"`
	Percentage    *int             `json:"percentage,omitempty"`
	SubmitReason  SubmitReason     `json:"submitReason,omitempty"`
	At            time.Time        `json:"at"`
}
