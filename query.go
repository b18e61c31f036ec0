package pgcrew

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mkarsten/pgcrew/internal/sqlguard"
)

// Query executes the full query pipeline and returns only QueryOutput.
// All errors (Postgres errors, guard rejections, Go errors) are converted
// to output.Error, then evaluated against guidance rules — any matching
// steering messages are appended. Callers only need to check
// output.Error, never a Go error.
func (e *Engine) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	release, err := e.acquireSlot(ctx, "Query")
	if err != nil {
		return e.queryError(err)
	}
	defer release()

	// Length check before any parsing.
	if len(sql) > e.config.Query.MaxSQLLength {
		return e.queryError(fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), e.config.Query.MaxSQLLength))
	}

	// Guard check on the AST.
	if err := e.guard.Check(sql); err != nil {
		return e.queryError(err)
	}

	timeout, timeoutRule := e.timeouts.GetTimeoutWithPattern(sql)
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := e.pool.Acquire(queryCtx)
	if err != nil {
		return e.queryError(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(queryCtx)
	if err != nil {
		return e.queryError(err)
	}
	// Rollback uses the parent ctx — if the query timed out, queryCtx is
	// already cancelled and rollback would fail.
	defer tx.Rollback(ctx)

	rows, err := tx.Query(queryCtx, sql)
	if err != nil {
		return e.queryError(err)
	}

	result, err := e.collectRows(rows)
	if err != nil {
		return e.queryError(err)
	}

	// Read-only statements roll back immediately; writes commit.
	// Commit uses queryCtx intentionally so the whole pipeline completes
	// within the query timeout.
	if sqlguard.IsReadOnly(sql) {
		tx.Rollback(ctx)
	} else {
		if err := tx.Commit(queryCtx); err != nil {
			return e.queryError(err)
		}
	}

	result.Rows = e.sanitizer.SanitizeRows(result.Rows)
	e.truncateIfNeeded(result)

	logEvent := e.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(result.Rows)).
		Int64("rows_affected", result.RowsAffected)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if e.sanitizer.HasRules() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return result
}

// collectRows reads all rows from pgx.Rows into a QueryOutput.
func (e *Engine) collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{
		Columns:      columns,
		Rows:         resultRows,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		us := val.Microseconds
		hours := us / 3_600_000_000
		us -= hours * 3_600_000_000
		minutes := us / 60_000_000
		us -= minutes * 60_000_000
		seconds := us / 1_000_000
		us -= seconds * 1_000_000
		if us > 0 {
			return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
		}
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		var parts []string
		if val.Months != 0 {
			years := val.Months / 12
			months := val.Months % 12
			if years != 0 {
				parts = append(parts, fmt.Sprintf("%d year(s)", years))
			}
			if months != 0 {
				parts = append(parts, fmt.Sprintf("%d mon(s)", months))
			}
		}
		if val.Days != 0 {
			parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
		}
		if val.Microseconds != 0 {
			dur := time.Duration(val.Microseconds) * time.Microsecond
			parts = append(parts, dur.String())
		}
		if len(parts) == 0 {
			return "0"
		}
		return strings.Join(parts, " ")
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

// queryError converts any error into a QueryOutput with an error message,
// appending matching guidance prompts.
func (e *Engine) queryError(err error) *QueryOutput {
	return &QueryOutput{Error: e.errorWithGuidance(err)}
}

// errorWithGuidance renders an error message with any matching steering
// prompts appended, and logs the failure.
func (e *Engine) errorWithGuidance(err error) string {
	errMsg := err.Error()
	prompt := e.guidance.Match(errMsg)
	patterns := e.guidance.MatchedPatterns(errMsg)

	logEvent := e.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("guidance", patterns)
	}
	logEvent.Msg("query error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return errMsg
}

// truncateIfNeeded truncates query output rows if their JSON encoding
// exceeds MaxResultLength characters.
func (e *Engine) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= e.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:e.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized
// log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
