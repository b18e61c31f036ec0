package pgcrew

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/mkarsten/pgcrew/internal/guidance"
)

// testEngine builds an Engine with just the components unit tests need.
// No pool; anything touching the database stays in integration tests.
func testEngine(t *testing.T, guidanceRules []guidance.Rule, maxResultLength int) *Engine {
	t.Helper()
	matcher, err := guidance.NewMatcher(guidanceRules)
	if err != nil {
		t.Fatalf("failed to build matcher: %v", err)
	}
	return &Engine{
		config: Config{
			Query: QueryConfig{MaxResultLength: maxResultLength},
		},
		guidance: matcher,
		logger:   zerolog.Nop(),
	}
}

func TestConvertValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	if got := convertValue(ts); got != "2026-03-14T09:26:53.589793Z" {
		t.Fatalf("time conversion = %v", got)
	}

	if got := convertValue(nil); got != nil {
		t.Fatalf("nil should stay nil, got %v", got)
	}

	if got := convertValue(math.NaN()); got != "NaN" {
		t.Fatalf("NaN = %v", got)
	}
	if got := convertValue(math.Inf(1)); got != "Infinity" {
		t.Fatalf("+Inf = %v", got)
	}
	if got := convertValue(math.Inf(-1)); got != "-Infinity" {
		t.Fatalf("-Inf = %v", got)
	}
	if got := convertValue(float64(1.5)); got != 1.5 {
		t.Fatalf("plain float = %v", got)
	}

	uuid := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	if got := convertValue(uuid); got != "12345678-9abc-def0-1234-56789abcdef0" {
		t.Fatalf("uuid = %v", got)
	}

	if got := convertValue([]byte{0x01, 0x02}); got != "AQI=" {
		t.Fatalf("bytea = %v", got)
	}
}

func TestConvertValue_PgtypeTime(t *testing.T) {
	t.Parallel()
	// 13:37:42 exactly
	us := int64(13)*3_600_000_000 + int64(37)*60_000_000 + int64(42)*1_000_000
	if got := convertValue(pgtype.Time{Microseconds: us, Valid: true}); got != "13:37:42" {
		t.Fatalf("time = %v", got)
	}
	if got := convertValue(pgtype.Time{Microseconds: us + 500, Valid: true}); got != "13:37:42.000500" {
		t.Fatalf("time with micros = %v", got)
	}
	if got := convertValue(pgtype.Time{Valid: false}); got != nil {
		t.Fatalf("invalid time = %v", got)
	}
}

func TestConvertValue_PgtypeInterval(t *testing.T) {
	t.Parallel()
	v := pgtype.Interval{Months: 14, Days: 3, Microseconds: 90_000_000, Valid: true}
	got := convertValue(v).(string)
	if !strings.Contains(got, "1 year(s)") || !strings.Contains(got, "2 mon(s)") ||
		!strings.Contains(got, "3 day(s)") || !strings.Contains(got, "1m30s") {
		t.Fatalf("interval = %q", got)
	}
	if got := convertValue(pgtype.Interval{Valid: true}); got != "0" {
		t.Fatalf("zero interval = %v", got)
	}
}

func TestConvertValue_NestedCollections(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := map[string]interface{}{
		"when": ts,
		"list": []interface{}{ts, "plain"},
	}
	out := convertValue(in).(map[string]interface{})
	if out["when"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("nested time = %v", out["when"])
	}
	list := out["list"].([]interface{})
	if list[0] != "2026-01-02T03:04:05Z" || list[1] != "plain" {
		t.Fatalf("nested list = %v", list)
	}
}

func TestErrorWithGuidance_NoMatch(t *testing.T) {
	t.Parallel()
	e := testEngine(t, nil, 1000)
	got := e.errorWithGuidance(errors.New("plain failure"))
	if got != "plain failure" {
		t.Fatalf("expected untouched message, got %q", got)
	}
}

func TestErrorWithGuidance_AppendsPrompt(t *testing.T) {
	t.Parallel()
	e := testEngine(t, []guidance.Rule{
		{Pattern: "does not exist", Message: "Call list_tables to see available tables."},
	}, 1000)
	got := e.errorWithGuidance(errors.New(`relation "users" does not exist`))
	want := "relation \"users\" does not exist\n\nCall list_tables to see available tables."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestQueryError_PlacesMessageInOutput(t *testing.T) {
	t.Parallel()
	e := testEngine(t, nil, 1000)
	out := e.queryError(errors.New("boom"))
	if out.Error != "boom" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(out.Rows) != 0 || len(out.Columns) != 0 {
		t.Fatalf("error output must carry no rows: %+v", out)
	}
}

func TestTruncateIfNeeded(t *testing.T) {
	t.Parallel()
	e := testEngine(t, nil, 50)

	small := &QueryOutput{Rows: []map[string]interface{}{{"a": "b"}}}
	e.truncateIfNeeded(small)
	if small.Error != "" || small.Rows == nil {
		t.Fatalf("small result must not be truncated: %+v", small)
	}

	big := &QueryOutput{Rows: []map[string]interface{}{
		{"a": strings.Repeat("x", 200)},
	}}
	e.truncateIfNeeded(big)
	if big.Rows != nil {
		t.Fatal("expected rows dropped after truncation")
	}
	if !strings.Contains(big.Error, "...[truncated] Result is too long! Add limits in your query!") {
		t.Fatalf("unexpected truncation error: %q", big.Error)
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()
	if got := truncateForLog("short", 200); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 300)
	got := truncateForLog(long, 200)
	if len(got) != 200+len("...[truncated]") {
		t.Fatalf("unexpected length %d", len(got))
	}
	if !strings.HasSuffix(got, "...[truncated]") {
		t.Fatalf("missing suffix: %q", got)
	}

	// Truncation never splits a multi-byte rune.
	multi := strings.Repeat("é", 150)
	got = truncateForLog(multi, 201)
	trimmed := strings.TrimSuffix(got, "...[truncated]")
	if !strings.HasSuffix(trimmed, "é") {
		t.Fatalf("rune split in %q", got)
	}
}
