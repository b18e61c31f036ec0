package pgcrew

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkarsten/pgcrew/crew"
)

// toolEngine is the engine surface the agent tools call. Satisfied by
// *Engine; narrowed to an interface so tool behavior is testable without
// a database.
type toolEngine interface {
	Query(ctx context.Context, input QueryInput) *QueryOutput
	Validate(ctx context.Context, input ValidateInput) *ValidateOutput
	ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error)
	DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error)
}

// CrewTools returns the four database tools wrapped for agent use:
// execute_sql, validate_sql, describe_table, and list_tables.
//
// Tool calls never fail: any error is folded into the returned string
// with a stable prefix ("Execution failed:", "Validation failed:",
// "Table description failed:", "Table listing failed:") so the model
// can read the failure and adjust, rather than aborting the task.
func CrewTools(e *Engine) []crew.Tool {
	return []crew.Tool{
		&executeSQLTool{engine: e},
		&validateSQLTool{engine: e},
		&describeTableTool{engine: e},
		&listTablesTool{engine: e},
	}
}

type executeSQLTool struct {
	engine toolEngine
}

func (t *executeSQLTool) Name() string { return "execute_sql" }

func (t *executeSQLTool) Description() string {
	return "Execute a SQL statement (SELECT, INSERT, UPDATE, DELETE) against the PostgreSQL database and return the result rows as JSON."
}

func (t *executeSQLTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "The SQL statement to execute.",
			},
		},
		"required": []string{"sql"},
	}
}

func (t *executeSQLTool) Call(ctx context.Context, args map[string]any) (string, error) {
	sql, ok := args["sql"].(string)
	if !ok || sql == "" {
		return `Execution failed: missing required argument "sql"`, nil
	}

	out := t.engine.Query(ctx, QueryInput{SQL: sql})
	if out.Error != "" {
		return "Execution failed: " + out.Error, nil
	}
	return marshalToolOutput(out, "Execution failed")
}

type validateSQLTool struct {
	engine toolEngine
}

func (t *validateSQLTool) Name() string { return "validate_sql" }

func (t *validateSQLTool) Description() string {
	return "Check a SQL statement for syntax errors and policy violations without executing it. Use before execute_sql when unsure a statement is well-formed."
}

func (t *validateSQLTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sql": map[string]any{
				"type":        "string",
				"description": "The SQL statement to validate.",
			},
		},
		"required": []string{"sql"},
	}
}

func (t *validateSQLTool) Call(ctx context.Context, args map[string]any) (string, error) {
	sql, ok := args["sql"].(string)
	if !ok || sql == "" {
		return `Validation failed: missing required argument "sql"`, nil
	}

	out := t.engine.Validate(ctx, ValidateInput{SQL: sql})
	if !out.Valid {
		return "Validation failed: " + out.Error, nil
	}
	return marshalToolOutput(out, "Validation failed")
}

type describeTableTool struct {
	engine toolEngine
}

func (t *describeTableTool) Name() string { return "describe_table" }

func (t *describeTableTool) Description() string {
	return "Describe a table, view, or materialized view: columns with types, indexes, constraints, and foreign keys."
}

func (t *describeTableTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": map[string]any{
				"type":        "string",
				"description": "Name of the table to describe.",
			},
			"schema": map[string]any{
				"type":        "string",
				"description": "Schema the table lives in. Defaults to public.",
			},
		},
		"required": []string{"table"},
	}
}

func (t *describeTableTool) Call(ctx context.Context, args map[string]any) (string, error) {
	table, ok := args["table"].(string)
	if !ok || table == "" {
		return `Table description failed: missing required argument "table"`, nil
	}
	schema, _ := args["schema"].(string)

	out, err := t.engine.DescribeTable(ctx, DescribeTableInput{Table: table, Schema: schema})
	if err != nil {
		return fmt.Sprintf("Table description failed: %v", err), nil
	}
	return marshalToolOutput(out, "Table description failed")
}

type listTablesTool struct {
	engine toolEngine
}

func (t *listTablesTool) Name() string { return "list_tables" }

func (t *listTablesTool) Description() string {
	return "List all tables, views, and materialized views readable by the current user, with their schema and type."
}

func (t *listTablesTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *listTablesTool) Call(ctx context.Context, args map[string]any) (string, error) {
	out, err := t.engine.ListTables(ctx, ListTablesInput{})
	if err != nil {
		return fmt.Sprintf("Table listing failed: %v", err), nil
	}
	return marshalToolOutput(out, "Table listing failed")
}

func marshalToolOutput(v any, failPrefix string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%s: could not encode result: %v", failPrefix, err), nil
	}
	return string(b), nil
}
