package config

import (
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	got := parseOrigins(" https://a.test , ,https://b.test")
	if len(got) != 2 || got[0] != "https://a.test" || got[1] != "https://b.test" {
		t.Fatalf("unexpected origins %v", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_PASS_PERCENT", "55.5")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("MAX_DB_CONNS", "not-a-number")

	cfg := Load()
	if cfg.DefaultPassPercent != 55.5 {
		t.Errorf("DefaultPassPercent = %v", cfg.DefaultPassPercent)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if cfg.MaxDBConns != 16 {
		t.Errorf("bad int should fall back, got %d", cfg.MaxDBConns)
	}
}

func TestLoad_PassPercentOutOfRange(t *testing.T) {
	t.Setenv("DEFAULT_PASS_PERCENT", "140")
	if got := Load().DefaultPassPercent; got != 40 {
		t.Errorf("out-of-range percent should fall back to 40, got %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamPayloadKey("e1"); got != "exam:e1:payload" {
		t.Errorf("ExamPayloadKey = %q", got)
	}
	if got := CacheKey.StudentActiveExamKey("s1"); got != "student:s1:active_exam" {
		t.Errorf("StudentActiveExamKey = %q", got)
	}
	if got := CacheKey.ExamMonitorChannel("e1"); got != "exam:e1:monitor" {
		t.Errorf("ExamMonitorChannel = %q", got)
	}
}
