// Package stats derives summary metrics from attempt history. Nothing is
// cached; every figure is recomputed from the attempts passed in.
package stats

import (
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/scoring"
)

// Thresholds maps exam ids to their pass percentage. Unknown exams get the
// fallback; a non-positive fallback, including the zero value's, means
// scoring.DefaultPassPercent.
type Thresholds struct {
	byExam   map[uuid.UUID]float64
	fallback float64
}

// NewThresholds computes the pass line of every given exam.
func NewThresholds(exams []model.Exam, fallback float64) Thresholds {
	m := make(map[uuid.UUID]float64, len(exams))
	for i := range exams {
		m[exams[i].ID] = scoring.Threshold(&exams[i], fallback)
	}
	return Thresholds{byExam: m, fallback: scoring.Fallback(fallback)}
}

// For returns the pass line of an exam, or the fallback for unknown exams.
func (t Thresholds) For(examID uuid.UUID) float64 {
	if p, ok := t.byExam[examID]; ok {
		return p
	}
	return scoring.Fallback(t.fallback)
}

// StudentStats summarises a set of attempts. All fields are zero for an
// empty set.
type StudentStats struct {
	TotalExams   int `json:"totalExams"`
	AverageScore int `json:"averageScore"`
	HighestScore int `json:"highestScore"`
	LowestScore  int `json:"lowestScore"`
	PassedExams  int `json:"passedExams"`
}

// SystemStats is StudentStats across every student plus population counts.
type SystemStats struct {
	StudentStats
	TotalAttempts   int `json:"totalAttempts"`
	TotalStudents   int `json:"totalStudents"`
	TotalExamsTaken int `json:"totalExamsTaken"`
}

// ExamStats summarises the attempts of a single exam.
type ExamStats struct {
	ExamID           uuid.UUID `json:"examId"`
	Attempts         int       `json:"attempts"`
	AverageScore     int       `json:"averageScore"`
	HighestScore     int       `json:"highestScore"`
	LowestScore      int       `json:"lowestScore"`
	PassedCount      int       `json:"passedCount"`
	PassRate         int       `json:"passRate"`
	AverageTimeTaken int       `json:"averageTimeTaken"`
	Threshold        float64   `json:"threshold"`
}

// PerStudent summarises one student's attempts. The average is the rounded
// mean of unrounded percentages; highest and lowest use rounded percentages.
func PerStudent(attempts []model.ExamAttempt, th Thresholds) StudentStats {
	var out StudentStats
	if len(attempts) == 0 {
		return out
	}

	sum := 0.0
	out.LowestScore = math.MaxInt
	for i := range attempts {
		a := &attempts[i]
		res := scoring.ForAttempt(a, th.For(a.ExamID))

		sum += scoring.Ratio(a.CorrectAnswers, a.TotalQuestions)
		if res.Percentage > out.HighestScore {
			out.HighestScore = res.Percentage
		}
		if res.Percentage < out.LowestScore {
			out.LowestScore = res.Percentage
		}
		if res.Passed {
			out.PassedExams++
		}
	}

	out.TotalExams = len(attempts)
	out.AverageScore = int(math.Round(sum / float64(len(attempts))))
	return out
}

// PerSystem summarises every attempt and counts distinct students and exams.
func PerSystem(attempts []model.ExamAttempt, th Thresholds) SystemStats {
	students := make(map[uuid.UUID]struct{})
	exams := make(map[uuid.UUID]struct{})
	for i := range attempts {
		students[attempts[i].StudentID] = struct{}{}
		exams[attempts[i].ExamID] = struct{}{}
	}

	return SystemStats{
		StudentStats:    PerStudent(attempts, th),
		TotalAttempts:   len(attempts),
		TotalStudents:   len(students),
		TotalExamsTaken: len(exams),
	}
}

// PerExam summarises attempts of one exam against its threshold. Attempts of
// other exams are ignored.
func PerExam(examID uuid.UUID, attempts []model.ExamAttempt, threshold float64) ExamStats {
	out := ExamStats{ExamID: examID, Threshold: threshold}

	sum := 0.0
	timeSum := 0
	out.LowestScore = math.MaxInt
	for i := range attempts {
		a := &attempts[i]
		if a.ExamID != examID {
			continue
		}
		res := scoring.ForAttempt(a, threshold)

		out.Attempts++
		sum += scoring.Ratio(a.CorrectAnswers, a.TotalQuestions)
		timeSum += a.TimeTaken
		if res.Percentage > out.HighestScore {
			out.HighestScore = res.Percentage
		}
		if res.Percentage < out.LowestScore {
			out.LowestScore = res.Percentage
		}
		if res.Passed {
			out.PassedCount++
		}
	}

	if out.Attempts == 0 {
		out.LowestScore = 0
		return out
	}
	out.AverageScore = int(math.Round(sum / float64(out.Attempts)))
	out.AverageTimeTaken = int(math.Round(float64(timeSum) / float64(out.Attempts)))
	out.PassRate = scoring.Percentage(out.PassedCount, out.Attempts)
	return out
}
