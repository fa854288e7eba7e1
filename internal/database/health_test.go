package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithRetry_SucceedsAfterFailure(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	}
	if err := withRetry(context.Background(), zerolog.Nop(), "test", ping); err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ping := func(context.Context) error { return errors.New("down") }
	if err := withRetry(ctx, zerolog.Nop(), "test", ping); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHealthStatus_OK(t *testing.T) {
	if !(HealthStatus{Postgres: "ok", Redis: "ok"}).OK() {
		t.Fatal("all ok should report OK")
	}
	if (HealthStatus{Postgres: "ok", Redis: "dial tcp: refused"}).OK() {
		t.Fatal("redis down should not report OK")
	}
}
