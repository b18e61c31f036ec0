package timeout

import (
	"testing"
	"time"
)

func TestNewManager_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules:          []Rule{{Pattern: "[bad", Timeout: time.Second}},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}

func TestGetTimeout_Default(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{DefaultTimeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.GetTimeout("SELECT 1"); got != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", got)
	}
}

func TestGetTimeout_FirstMatchWins(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: `(?i)^\s*SELECT.*JOIN`, Timeout: 120 * time.Second},
			{Pattern: `(?i)^\s*SELECT`, Timeout: 60 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.GetTimeout("SELECT a FROM t1 JOIN t2 ON t1.id = t2.id"); got != 120*time.Second {
		t.Fatalf("expected 120s for JOIN rule, got %v", got)
	}
	if got := m.GetTimeout("SELECT 1"); got != 60*time.Second {
		t.Fatalf("expected 60s for SELECT rule, got %v", got)
	}
	if got := m.GetTimeout("INSERT INTO t (a) VALUES (1)"); got != 30*time.Second {
		t.Fatalf("expected default for INSERT, got %v", got)
	}
}

func TestGetTimeoutWithPattern(t *testing.T) {
	t.Parallel()
	m, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules:          []Rule{{Pattern: "pg_sleep", Timeout: 5 * time.Second}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	timeout, pattern := m.GetTimeoutWithPattern("SELECT pg_sleep(10)")
	if timeout != 5*time.Second || pattern != "pg_sleep" {
		t.Fatalf("got (%v, %q), want (5s, pg_sleep)", timeout, pattern)
	}

	timeout, pattern = m.GetTimeoutWithPattern("SELECT 1")
	if timeout != 30*time.Second || pattern != "" {
		t.Fatalf("got (%v, %q), want (30s, \"\")", timeout, pattern)
	}
}
