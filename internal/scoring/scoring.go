// Package scoring grades finalized answer lists against an answer key and
// turns correct counts into percentages and pass/fail verdicts.
//
// Every percentage in the system goes through Percentage or Ratio so that a
// zero denominator yields 0 instead of NaN.
package scoring

import (
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
)

// DefaultPassPercent is the pass line used when an exam carries no usable
// marks ratio.
const DefaultPassPercent = 40.0

// Fallback returns p, or DefaultPassPercent when p is not positive.
func Fallback(p float64) float64 {
	if p <= 0 {
		return DefaultPassPercent
	}
	return p
}

// Tally is the raw outcome of grading one answer list.
type Tally struct {
	CorrectAnswers int `json:"correctAnswers"`
	TotalQuestions int `json:"totalQuestions"`
}

// Result is a tally decorated with its percentage and verdict.
type Result struct {
	Tally
	Percentage int     `json:"percentage"`
	Threshold  float64 `json:"threshold"`
	Passed     bool    `json:"passed"`
}

// Score counts the questions whose selected option equals the correct one.
// Answers are matched by question id; a question without an entry, or with
// the -1 sentinel, never matches.
func Score(questions []model.Question, answers []model.AttemptAnswer) Tally {
	selected := make(map[uuid.UUID]int, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOption
	}

	correct := 0
	for i := range questions {
		opt, ok := selected[questions[i].ID]
		if !ok || opt < 0 {
			continue
		}
		if opt == questions[i].CorrectAnswer {
			correct++
		}
	}

	return Tally{CorrectAnswers: correct, TotalQuestions: len(questions)}
}

// Ratio returns correct/total*100 without rounding, or 0 when total <= 0.
func Ratio(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Percentage returns the rounded percentage, or 0 when total <= 0.
func Percentage(correct, total int) int {
	return int(math.Round(Ratio(correct, total)))
}

// Threshold derives the pass percentage from the exam's marks. Exams without
// positive total marks fall back to the given default.
func Threshold(exam *model.Exam, fallback float64) float64 {
	if exam == nil || exam.TotalMarks <= 0 {
		return Fallback(fallback)
	}
	passing := exam.PassingMarks
	if passing < 0 {
		passing = 0
	}
	if passing > exam.TotalMarks {
		passing = exam.TotalMarks
	}
	return float64(passing) / float64(exam.TotalMarks) * 100
}

// Passed reports whether a percentage meets the threshold.
func Passed(percentage int, threshold float64) bool {
	return float64(percentage) >= threshold
}

// Evaluate builds a Result from a tally.
func Evaluate(t Tally, threshold float64) Result {
	pct := Percentage(t.CorrectAnswers, t.TotalQuestions)
	return Result{
		Tally:      t,
		Percentage: pct,
		Threshold:  threshold,
		Passed:     Passed(pct, threshold),
	}
}

// ForAttempt evaluates a stored attempt.
func ForAttempt(a *model.ExamAttempt, threshold float64) Result {
	return Evaluate(Tally{CorrectAnswers: a.CorrectAnswers, TotalQuestions: a.TotalQuestions}, threshold)
}
