package pgcrew

// QueryInput is the input for the execute_sql tool.
type QueryInput struct {
	SQL string `json:"sql"`
}

// QueryOutput is the output of the execute_sql tool. All errors (Postgres
// errors, guard rejections, Go errors) are placed in Error. The error
// message is evaluated against guidance rules and matching steering
// messages are appended.
type QueryOutput struct {
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	RowsAffected int64                    `json:"rows_affected"`
	Error        string                   `json:"error,omitempty"`
}

// ValidateInput is the input for the validate_sql tool.
type ValidateInput struct {
	SQL string `json:"sql"`
}

// ValidateOutput is the output of the validate_sql tool. Valid is true
// only when the statement parsed, passed all guard rules, and (where
// applicable) survived a server-side EXPLAIN dry-run. Rejections and
// server errors are reported in Error, never as a Go error.
type ValidateOutput struct {
	Valid     bool   `json:"valid"`
	Statement string `json:"statement,omitempty"` // e.g. "SELECT", "INSERT", "CREATE TABLE"
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ListTablesInput is the input for the list_tables tool.
type ListTablesInput struct{}

// TableEntry represents a single table/view in the ListTables output.
type TableEntry struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Type   string `json:"type"` // "table", "view", "materialized_view", "foreign_table", "partitioned_table"
}

// ListTablesOutput is the output of the list_tables tool.
type ListTablesOutput struct {
	Tables []TableEntry `json:"tables"`
	Error  string       `json:"error,omitempty"`
}

// DescribeTableInput is the input for the describe_table tool.
type DescribeTableInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// IndexInfo describes a single index.
type IndexInfo struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	IsUnique   bool   `json:"is_unique"`
	IsPrimary  bool   `json:"is_primary"`
}

// ConstraintInfo describes a single constraint.
type ConstraintInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK
	Definition string `json:"definition"`
}

// ForeignKeyInfo describes a single foreign key.
type ForeignKeyInfo struct {
	Name              string `json:"name"`
	Columns           string `json:"columns"`
	ReferencedTable   string `json:"referenced_table"`
	ReferencedColumns string `json:"referenced_columns"`
	OnUpdate          string `json:"on_update"`
	OnDelete          string `json:"on_delete"`
}

// DescribeTableOutput is the output of the describe_table tool.
type DescribeTableOutput struct {
	Schema      string           `json:"schema"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`                 // "table", "view", "materialized_view", "foreign_table", "partitioned_table"
	Definition  string           `json:"definition,omitempty"` // view/matview SQL definition
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	Constraints []ConstraintInfo `json:"constraints"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
	Error       string           `json:"error,omitempty"`
}
