package stats

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/scoring"
)

func attempt(student, exam uuid.UUID, correct, total int) model.ExamAttempt {
	return model.ExamAttempt{
		ID:             uuid.New(),
		StudentID:      student,
		ExamID:         exam,
		Score:          correct,
		CorrectAnswers: correct,
		TotalQuestions: total,
		TimeTaken:      60,
	}
}

func TestPerStudent_Empty(t *testing.T) {
	got := PerStudent(nil, Thresholds{})
	want := StudentStats{}
	if got != want {
		t.Fatalf("expected all zero, got %+v", got)
	}
}

func TestPerStudent(t *testing.T) {
	student := uuid.New()
	easy := model.Exam{ID: uuid.New(), TotalMarks: 100, PassingMarks: 40}
	hard := model.Exam{ID: uuid.New(), TotalMarks: 10, PassingMarks: 8}
	th := NewThresholds([]model.Exam{easy, hard}, scoring.DefaultPassPercent)

	attempts := []model.ExamAttempt{
		attempt(student, easy.ID, 2, 4), // 50%, passes 40
		attempt(student, hard.ID, 3, 4), // 75%, fails 80
		attempt(student, hard.ID, 1, 3), // 33.3%, fails
	}

	got := PerStudent(attempts, th)
	if got.TotalExams != 3 {
		t.Errorf("TotalExams = %d, want 3", got.TotalExams)
	}
	// (50 + 75 + 33.33) / 3 = 52.78
	if got.AverageScore != 53 {
		t.Errorf("AverageScore = %d, want 53", got.AverageScore)
	}
	if got.HighestScore != 75 {
		t.Errorf("HighestScore = %d, want 75", got.HighestScore)
	}
	if got.LowestScore != 33 {
		t.Errorf("LowestScore = %d, want 33", got.LowestScore)
	}
	if got.PassedExams != 1 {
		t.Errorf("PassedExams = %d, want 1", got.PassedExams)
	}
}

func TestPerStudent_ZeroDenominatorAttempt(t *testing.T) {
	student := uuid.New()
	exam := uuid.New()
	attempts := []model.ExamAttempt{
		attempt(student, exam, 0, 0),
		attempt(student, exam, 4, 4),
	}

	got := PerStudent(attempts, Thresholds{})
	if got.AverageScore != 50 {
		t.Errorf("AverageScore = %d, want 50", got.AverageScore)
	}
	if got.LowestScore != 0 || got.HighestScore != 100 {
		t.Errorf("unexpected range %d..%d", got.LowestScore, got.HighestScore)
	}
	if got.PassedExams != 1 {
		t.Errorf("PassedExams = %d, want 1", got.PassedExams)
	}
}

func TestThresholds_UnknownExamUsesFallback(t *testing.T) {
	th := NewThresholds(nil, 55)
	if got := th.For(uuid.New()); got != 55 {
		t.Errorf("got %v, want 55", got)
	}
	if got := (Thresholds{}).For(uuid.New()); got != scoring.DefaultPassPercent {
		t.Errorf("zero Thresholds: got %v, want %v", got, scoring.DefaultPassPercent)
	}
}

func TestThresholds_NonPositiveFallbackMatchesZeroValue(t *testing.T) {
	marksless := model.Exam{ID: uuid.New(), TotalMarks: 0}
	for _, fallback := range []float64{0, -5} {
		th := NewThresholds([]model.Exam{marksless}, fallback)
		if got := th.For(uuid.New()); got != scoring.DefaultPassPercent {
			t.Errorf("fallback %v, unknown exam: got %v, want %v", fallback, got, scoring.DefaultPassPercent)
		}
		if got := th.For(marksless.ID); got != scoring.DefaultPassPercent {
			t.Errorf("fallback %v, exam without marks: got %v, want %v", fallback, got, scoring.DefaultPassPercent)
		}
	}
}

func TestPerSystem(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()
	e1, e2 := uuid.New(), uuid.New()
	attempts := []model.ExamAttempt{
		attempt(s1, e1, 1, 2),
		attempt(s1, e2, 2, 2),
		attempt(s2, e1, 0, 2),
	}

	got := PerSystem(attempts, Thresholds{})
	if got.TotalStudents != 2 || got.TotalExamsTaken != 2 || got.TotalAttempts != 3 {
		t.Errorf("unexpected counts %+v", got)
	}
	if got.AverageScore != 50 || got.PassedExams != 2 {
		t.Errorf("unexpected summary %+v", got.StudentStats)
	}

	empty := PerSystem(nil, Thresholds{})
	if empty != (SystemStats{}) {
		t.Errorf("expected zero system stats, got %+v", empty)
	}
}

func TestPerExam(t *testing.T) {
	exam, other := uuid.New(), uuid.New()
	attempts := []model.ExamAttempt{
		attempt(uuid.New(), exam, 3, 4),
		attempt(uuid.New(), exam, 1, 4),
		attempt(uuid.New(), other, 4, 4),
	}
	attempts[1].TimeTaken = 121

	got := PerExam(exam, attempts, 60)
	if got.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", got.Attempts)
	}
	if got.AverageScore != 50 || got.HighestScore != 75 || got.LowestScore != 25 {
		t.Errorf("unexpected scores %+v", got)
	}
	if got.PassedCount != 1 || got.PassRate != 50 {
		t.Errorf("unexpected pass figures %+v", got)
	}
	if got.AverageTimeTaken != 91 {
		t.Errorf("AverageTimeTaken = %d, want 91", got.AverageTimeTaken)
	}

	none := PerExam(uuid.New(), attempts, 60)
	if none.Attempts != 0 || none.LowestScore != 0 || none.AverageScore != 0 {
		t.Errorf("expected zeroed stats, got %+v", none)
	}
}
