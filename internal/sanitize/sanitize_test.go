package sanitize

import "testing"

func TestNewSanitizer_InvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewSanitizer([]Rule{{Pattern: "(unclosed", Replacement: "x"}})
	if err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
}

func TestHasRules(t *testing.T) {
	t.Parallel()
	empty, err := NewSanitizer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.HasRules() {
		t.Fatal("expected no rules")
	}

	s, err := NewSanitizer([]Rule{{Pattern: "a", Replacement: "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.HasRules() {
		t.Fatal("expected rules")
	}
}

func TestSanitizeRows_StringFields(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{
		{Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[REDACTED]"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{"name": "alice", "ssn": "123-45-6789", "age": 30},
	}
	out := s.SanitizeRows(rows)
	if out[0]["ssn"] != "[REDACTED]" {
		t.Fatalf("expected redacted ssn, got %v", out[0]["ssn"])
	}
	if out[0]["name"] != "alice" {
		t.Fatalf("expected name untouched, got %v", out[0]["name"])
	}
	if out[0]["age"] != 30 {
		t.Fatalf("expected age untouched, got %v", out[0]["age"])
	}
}

func TestSanitizeRows_RecursesIntoJSONB(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer([]Rule{
		{Pattern: "secret", Replacement: "[HIDDEN]"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := []map[string]interface{}{
		{
			"payload": map[string]interface{}{
				"token": "secret-token",
				"tags":  []interface{}{"public", "secret"},
			},
		},
	}
	out := s.SanitizeRows(rows)
	payload := out[0]["payload"].(map[string]interface{})
	if payload["token"] != "[HIDDEN]-token" {
		t.Fatalf("expected nested string redacted, got %v", payload["token"])
	}
	tags := payload["tags"].([]interface{})
	if tags[1] != "[HIDDEN]" {
		t.Fatalf("expected array element redacted, got %v", tags[1])
	}
}

func TestSanitizeRows_NoRulesPassthrough(t *testing.T) {
	t.Parallel()
	s, err := NewSanitizer(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := []map[string]interface{}{{"a": "secret"}}
	out := s.SanitizeRows(rows)
	if out[0]["a"] != "secret" {
		t.Fatalf("expected passthrough, got %v", out[0]["a"])
	}
}
