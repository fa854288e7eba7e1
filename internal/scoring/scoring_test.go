package scoring

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
)

func makeQuestions(correct ...int) []model.Question {
	qs := make([]model.Question, len(correct))
	for i, c := range correct {
		qs[i] = model.Question{
			ID:            uuid.New(),
			Question:      "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: c,
		}
	}
	return qs
}

func TestScore_MixedAnswers(t *testing.T) {
	qs := makeQuestions(0, 1, 2, 3)
	answers := []model.AttemptAnswer{
		{QuestionID: qs[0].ID, SelectedOption: 0},
		{QuestionID: qs[1].ID, SelectedOption: 1},
		{QuestionID: qs[2].ID, SelectedOption: 9},
		{QuestionID: qs[3].ID, SelectedOption: model.UnansweredOption},
	}

	got := Score(qs, answers)
	if got.CorrectAnswers != 2 || got.TotalQuestions != 4 {
		t.Fatalf("expected 2/4, got %d/%d", got.CorrectAnswers, got.TotalQuestions)
	}

	res := Evaluate(got, DefaultPassPercent)
	if res.Percentage != 50 {
		t.Errorf("expected 50%%, got %d", res.Percentage)
	}
	if !res.Passed {
		t.Errorf("expected pass at 40%% threshold")
	}
}

func TestScore_SentinelNeverMatches(t *testing.T) {
	qs := makeQuestions(0)
	// A corrupt key of -1 must still not match an unanswered entry.
	qs[0].CorrectAnswer = -1
	got := Score(qs, []model.AttemptAnswer{{QuestionID: qs[0].ID, SelectedOption: -1}})
	if got.CorrectAnswers != 0 {
		t.Fatalf("sentinel matched: %+v", got)
	}
}

func TestScore_MissingAnswersCountAsWrong(t *testing.T) {
	qs := makeQuestions(1, 1, 1)
	got := Score(qs, nil)
	if got.CorrectAnswers != 0 || got.TotalQuestions != 3 {
		t.Fatalf("unexpected tally %+v", got)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name           string
		correct, total int
		want           int
	}{
		{name: "zero total", correct: 0, total: 0, want: 0},
		{name: "negative total", correct: 3, total: -1, want: 0},
		{name: "all correct", correct: 5, total: 5, want: 100},
		{name: "one third rounds down", correct: 1, total: 3, want: 33},
		{name: "two thirds rounds up", correct: 2, total: 3, want: 67},
		{name: "half rounds up", correct: 1, total: 8, want: 13},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Percentage(tc.correct, tc.total); got != tc.want {
				t.Errorf("Percentage(%d, %d) = %d, want %d", tc.correct, tc.total, got, tc.want)
			}
		})
	}
}

func TestRatio_NeverNaN(t *testing.T) {
	if r := Ratio(0, 0); math.IsNaN(r) || r != 0 {
		t.Fatalf("expected 0, got %v", r)
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name string
		exam *model.Exam
		want float64
	}{
		{name: "nil exam", exam: nil, want: DefaultPassPercent},
		{name: "no total marks", exam: &model.Exam{TotalMarks: 0, PassingMarks: 10}, want: DefaultPassPercent},
		{name: "ratio", exam: &model.Exam{TotalMarks: 100, PassingMarks: 60}, want: 60},
		{name: "passing above total clamps", exam: &model.Exam{TotalMarks: 10, PassingMarks: 20}, want: 100},
		{name: "zero passing", exam: &model.Exam{TotalMarks: 10, PassingMarks: 0}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Threshold(tc.exam, DefaultPassPercent); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestThreshold_NonPositiveFallback(t *testing.T) {
	exam := &model.Exam{TotalMarks: 0}
	for _, fallback := range []float64{0, -1} {
		if got := Threshold(exam, fallback); got != DefaultPassPercent {
			t.Errorf("fallback %v: got %v, want %v", fallback, got, DefaultPassPercent)
		}
	}
	if got := Threshold(exam, 75); got != 75 {
		t.Errorf("fallback 75: got %v", got)
	}
}

func TestForAttempt_ZeroDenominator(t *testing.T) {
	a := &model.ExamAttempt{CorrectAnswers: 0, TotalQuestions: 0}
	res := ForAttempt(a, DefaultPassPercent)
	if res.Percentage != 0 || res.Passed {
		t.Fatalf("unexpected result %+v", res)
	}
}
