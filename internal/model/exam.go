package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is an exam definition: an ordered list of question ids, a time limit
// and a pass line expressed in marks.
type Exam struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Subject      string      `json:"subject"`
	Duration     int         `json:"duration"` // minutes
	Questions    []uuid.UUID `json:"questions"`
	TotalMarks   int         `json:"totalMarks"`
	PassingMarks int         `json:"passingMarks"`
	IsActive     bool        `json:"isActive"`
	CreatedBy    *uuid.UUID  `json:"createdBy,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// DurationSeconds returns the time limit in whole seconds.
func (e *Exam) DurationSeconds() int {
	return e.Duration * 60
}

// Clone returns a deep copy so callers can keep a snapshot that later catalog
// edits cannot reach.
func (e *Exam) Clone() Exam {
	c := *e
	c.Questions = make([]uuid.UUID, len(e.Questions))
	copy(c.Questions, e.Questions)
	if e.CreatedBy != nil {
		by := *e.CreatedBy
		c.CreatedBy = &by
	}
	return c
}

// ExamRequest is the payload for creating or updating an exam.
type ExamRequest struct {
	Title        string      `json:"title" binding:"required,min=3,max=255"`
	Subject      string      `json:"subject" binding:"required,min=1,max=100"`
	Duration     int         `json:"duration" binding:"required,min=1,max=480"`
	Questions    []uuid.UUID `json:"questions" binding:"required,min=1,max=500"`
	TotalMarks   int         `json:"totalMarks" binding:"required,min=1"`
	PassingMarks int         `json:"passingMarks" binding:"min=0,ltefield=TotalMarks"`
	IsActive     *bool       `json:"isActive" binding:"omitempty"`
}

// SetActiveRequest toggles whether students can start an exam.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}
