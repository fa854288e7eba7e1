package model

import (
	"time"

	"github.com/google/uuid"
)

// UnansweredOption marks a question the student never answered.
const UnansweredOption = -1

// SubmitReason records why an attempt was finalized.
type SubmitReason string

const (
	SubmitReasonManual   SubmitReason = "manual"
	SubmitReasonTimeout  SubmitReason = "timeout"
	// SubmitReasonShutdown marks sessions the server submitted while stopping.
	SubmitReasonShutdown SubmitReason = "shutdown"
)

// AttemptAnswer is one entry of an attempt's ordered answer list.
type AttemptAnswer struct {
	QuestionID     uuid.UUID `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
}

// ExamAttempt is a finalized, scored exam submission. Attempts are never
// updated once created.
type ExamAttempt struct {
	ID             uuid.UUID       `json:"id"`
	SubmissionID   uuid.UUID       `json:"submissionId"`
	ExamID         uuid.UUID       `json:"examId"`
	StudentID      uuid.UUID       `json:"studentId"`
	Answers        []AttemptAnswer `json:"answers"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	CorrectAnswers int             `json:"correctAnswers"`
	StartedAt      time.Time       `json:"startedAt"`
	SubmittedAt    time.Time       `json:"submittedAt"`
	TimeTaken      int             `json:"timeTaken"` // seconds
	SubmitReason   SubmitReason    `json:"submitReason"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// AnsweredCount returns how many entries carry a real option.
func (a *ExamAttempt) AnsweredCount() int {
	n := 0
	for _, ans := range a.Answers {
		if ans.SelectedOption != UnansweredOption {
			n++
		}
	}
	return n
}

// PersistJob is a scored attempt waiting in the retry queue. Tries counts
// failed store round trips made by the worker.
type PersistJob struct {
	Attempt ExamAttempt `json:"attempt"`
	Tries   int         `json:"tries"`
}
