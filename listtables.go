package pgcrew

import (
	"context"
	"fmt"
	"time"
)

const listTablesSQL = `
SELECT
    n.nspname AS schema,
    c.relname AS name,
    CASE c.relkind
        WHEN 'r' THEN 'table'
        WHEN 'v' THEN 'view'
        WHEN 'm' THEN 'materialized_view'
        WHEN 'f' THEN 'foreign_table'
        WHEN 'p' THEN 'partitioned_table'
    END AS type
FROM pg_catalog.pg_class c
LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'v', 'm', 'f', 'p')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
  AND has_table_privilege(c.oid, 'SELECT')
ORDER BY n.nspname, c.relname;
`

// ListTables returns all tables, views, materialized views, and foreign
// tables readable by the current user. Does not go through the guard or
// sanitization pipeline — it issues a fixed catalog query.
func (e *Engine) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	startTime := time.Now()

	release, err := e.acquireSlot(ctx, "ListTables")
	if err != nil {
		return nil, err
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	conn, err := e.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("ListTables query failed: %w", err)
	}
	defer rows.Close()

	tables := []TableEntry{}
	for rows.Next() {
		var entry TableEntry
		if err := rows.Scan(&entry.Schema, &entry.Name, &entry.Type); err != nil {
			return nil, fmt.Errorf("ListTables scan failed: %w", err)
		}
		tables = append(tables, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTables rows error: %w", err)
	}

	e.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(tables)).
		Msg("ListTables executed")

	return &ListTablesOutput{Tables: tables}, nil
}
