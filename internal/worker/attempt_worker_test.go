package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/cbt-backend/internal/model"
)

type fakeWriter struct {
	batchErr error
	// failing lists submission ids CreateAttempt rejects.
	failing map[uuid.UUID]bool

	batches int
	singles []uuid.UUID
}

func (f *fakeWriter) CreateBatch(_ context.Context, attempts []model.ExamAttempt) error {
	f.batches++
	return f.batchErr
}

func (f *fakeWriter) CreateAttempt(_ context.Context, a *model.ExamAttempt) error {
	f.singles = append(f.singles, a.SubmissionID)
	if f.failing[a.SubmissionID] {
		return errors.New("insert failed")
	}
	return nil
}

func job(tries int) model.PersistJob {
	return model.PersistJob{
		Attempt: model.ExamAttempt{SubmissionID: uuid.New(), ExamID: uuid.New(), StudentID: uuid.New()},
		Tries:   tries,
	}
}

func TestAttemptWorker_PersistBatch(t *testing.T) {
	store := &fakeWriter{}
	w := NewAttemptWorker(store, nil, zerolog.Nop())

	retry, dead := w.persist(context.Background(), []model.PersistJob{job(0), job(3)})
	if len(retry) != 0 || len(dead) != 0 {
		t.Fatalf("retry = %d dead = %d, want none", len(retry), len(dead))
	}
	if store.batches != 1 || len(store.singles) != 0 {
		t.Fatalf("batches = %d singles = %d, want one batch only", store.batches, len(store.singles))
	}
}

func TestAttemptWorker_PersistFallback(t *testing.T) {
	ok, flaky, exhausted := job(0), job(2), job(AttemptMaxTries-1)
	store := &fakeWriter{
		batchErr: errors.New("batch failed"),
		failing: map[uuid.UUID]bool{
			flaky.Attempt.SubmissionID:     true,
			exhausted.Attempt.SubmissionID: true,
		},
	}
	w := NewAttemptWorker(store, nil, zerolog.Nop())

	retry, dead := w.persist(context.Background(), []model.PersistJob{ok, flaky, exhausted})

	if len(store.singles) != 3 {
		t.Fatalf("single inserts = %d, want 3", len(store.singles))
	}
	if len(retry) != 1 || retry[0].Attempt.SubmissionID != flaky.Attempt.SubmissionID {
		t.Fatalf("retry = %+v, want the flaky job", retry)
	}
	if retry[0].Tries != 3 {
		t.Fatalf("tries = %d, want 3", retry[0].Tries)
	}
	if len(dead) != 1 || dead[0].Attempt.SubmissionID != exhausted.Attempt.SubmissionID {
		t.Fatalf("dead = %+v, want the exhausted job", dead)
	}
	if dead[0].Tries != AttemptMaxTries {
		t.Fatalf("dead tries = %d, want %d", dead[0].Tries, AttemptMaxTries)
	}
}

func TestAttemptWorker_FlushEmpty(t *testing.T) {
	w := NewAttemptWorker(&fakeWriter{}, nil, zerolog.Nop())
	if n := w.flush(context.Background(), nil); n != 0 {
		t.Fatalf("flush(nil) = %d, want 0", n)
	}
}
