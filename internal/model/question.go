package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty grades how hard a question is.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a single multiple-choice item in the question bank.
// CorrectAnswer is a zero-based index into Options.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Subject       string     `json:"subject"`
	Difficulty    Difficulty `json:"difficulty"`
	CreatedBy     *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// HasValidAnswer reports whether CorrectAnswer indexes into Options.
func (q *Question) HasValidAnswer() bool {
	return q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID         uuid.UUID  `json:"id"`
	Question   string     `json:"question"`
	Options    []string   `json:"options"`
	Subject    string     `json:"subject"`
	Difficulty Difficulty `json:"difficulty"`
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() QuestionForStudent {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return QuestionForStudent{
		ID:         q.ID,
		Question:   q.Question,
		Options:    opts,
		Subject:    q.Subject,
		Difficulty: q.Difficulty,
	}
}

// QuestionRequest is the payload for creating or replacing a question.
type QuestionRequest struct {
	Question      string   `json:"question" binding:"required,notblank,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=6,dive,required,notblank,max=500"`
	CorrectAnswer *int     `json:"correctAnswer" binding:"required,min=0"`
	Subject       string   `json:"subject" binding:"required,min=1,max=100"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
}

// PageQuery is the common pagination query string.
type PageQuery struct {
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
	Subject string `form:"subject" binding:"omitempty,max=100"`
}

// QuestionsByIDsRequest is the payload for hydrating an ordered id list.
type QuestionsByIDsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=500"`
}
