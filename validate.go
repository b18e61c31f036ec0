package pgcrew

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarsten/pgcrew/internal/sqlguard"
)

// Validate checks a SQL statement without executing it. The pipeline is:
//
//  1. parse with PostgreSQL's own parser and resolve the statement kind
//  2. evaluate the guard rules on the AST
//  3. for SELECT/DML statements, run a server-side EXPLAIN dry-run in a
//     transaction that is always rolled back, catching errors the parser
//     cannot see (missing tables, type mismatches, bad casts)
//
// Rejections and server errors are reported in the output, never as a Go
// error; guidance prompts are appended the same way Query does.
func (e *Engine) Validate(ctx context.Context, input ValidateInput) *ValidateOutput {
	startTime := time.Now()
	sql := input.SQL

	if len(sql) > e.config.Query.MaxSQLLength {
		return e.validateError("", fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), e.config.Query.MaxSQLLength))
	}

	kind, err := sqlguard.StatementKind(sql)
	if err != nil {
		return e.validateError("", err)
	}

	if err := e.guard.Check(sql); err != nil {
		return e.validateError(kind, err)
	}

	// Guard passed; statements EXPLAIN cannot cover are done here.
	if !sqlguard.Explainable(sql) {
		out := &ValidateOutput{
			Valid:     true,
			Statement: kind,
			Message:   fmt.Sprintf("%s statement passed all guard rules (no server-side dry-run for this statement type).", kind),
		}
		e.logValidate(sql, out, startTime)
		return out
	}

	if err := e.explainDryRun(ctx, sql); err != nil {
		return e.validateError(kind, err)
	}

	out := &ValidateOutput{
		Valid:     true,
		Statement: kind,
		Message:   fmt.Sprintf("%s statement is valid: it parsed, passed all guard rules, and planned successfully on the server.", kind),
	}
	e.logValidate(sql, out, startTime)
	return out
}

// explainDryRun plans the statement on the server inside a transaction
// that is always rolled back. EXPLAIN without ANALYZE never executes the
// statement, so even an INSERT validates side-effect free.
func (e *Engine) explainDryRun(ctx context.Context, sql string) error {
	release, err := e.acquireSlot(ctx, "Validate")
	if err != nil {
		return err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, e.timeouts.GetTimeout(sql))
	defer cancel()

	conn, err := e.pool.Acquire(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(queryCtx, "EXPLAIN "+sql)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		// Drain the plan output; the content is irrelevant.
	}
	return rows.Err()
}

func (e *Engine) validateError(kind string, err error) *ValidateOutput {
	return &ValidateOutput{
		Valid:     false,
		Statement: kind,
		Error:     e.errorWithGuidance(err),
	}
}

func (e *Engine) logValidate(sql string, out *ValidateOutput, startTime time.Time) {
	e.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Str("statement", out.Statement).
		Bool("valid", out.Valid).
		Dur("duration", time.Since(startTime)).
		Msg("Validate executed")
}
