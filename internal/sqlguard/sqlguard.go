package sqlguard

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Config is the guard's own config type. All Allow* fields default to
// false (blocked).
type Config struct {
	AllowSet                bool
	AllowDrop               bool
	AllowTruncate           bool
	AllowDo                 bool
	AllowCopy               bool
	AllowDeleteWithoutWhere bool
	AllowUpdateWithoutWhere bool
	AllowDDL                bool
	AllowMaintenance        bool
	AllowRoleManagement     bool
	ReadOnly                bool
}

// Checker validates SQL statements against guard rules by walking the
// AST produced by PostgreSQL's own parser.
type Checker struct {
	config Config
}

// NewChecker creates a new Checker with the given config.
func NewChecker(config Config) *Checker {
	return &Checker{config: config}
}

// Check parses SQL with pg_query and walks the AST.
// Returns nil if allowed, a descriptive error if blocked.
func (c *Checker) Check(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}

	if len(result.Stmts) == 0 {
		return fmt.Errorf("SQL parse error: empty query")
	}

	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(result.Stmts))
	}

	return c.checkNode(result.Stmts[0].Stmt)
}

// StatementKind returns a short tag for the statement, e.g. "SELECT" or
// "CREATE TABLE". Used by the validate_sql tool to name what it checked.
func StatementKind(sql string) (string, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return "", fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return "", fmt.Errorf("SQL parse error: empty query")
	}
	return kindOf(result.Stmts[0].Stmt), nil
}

// IsReadOnly reports whether the SQL is a read-only statement. Returns
// false for anything that fails to parse.
func IsReadOnly(sql string) bool {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) == 0 {
		return false
	}
	switch result.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return true
	case *pg_query.Node_ExplainStmt:
		return true
	case *pg_query.Node_VariableSetStmt:
		return true
	case *pg_query.Node_VariableShowStmt:
		return true
	default:
		return false
	}
}

// Explainable reports whether the statement kind supports a server-side
// EXPLAIN dry-run (SELECT and the DML statements).
func Explainable(sql string) bool {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) == 0 {
		return false
	}
	switch result.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_SelectStmt, *pg_query.Node_InsertStmt,
		*pg_query.Node_UpdateStmt, *pg_query.Node_DeleteStmt,
		*pg_query.Node_MergeStmt:
		return true
	default:
		return false
	}
}

func kindOf(node *pg_query.Node) string {
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return "SELECT"
	case *pg_query.Node_InsertStmt:
		return "INSERT"
	case *pg_query.Node_UpdateStmt:
		return "UPDATE"
	case *pg_query.Node_DeleteStmt:
		return "DELETE"
	case *pg_query.Node_MergeStmt:
		return "MERGE"
	case *pg_query.Node_ExplainStmt:
		return "EXPLAIN"
	case *pg_query.Node_CreateStmt:
		return "CREATE TABLE"
	case *pg_query.Node_AlterTableStmt:
		return "ALTER TABLE"
	case *pg_query.Node_IndexStmt:
		return "CREATE INDEX"
	case *pg_query.Node_ViewStmt:
		return "CREATE VIEW"
	case *pg_query.Node_DropStmt:
		return "DROP"
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE"
	case *pg_query.Node_CopyStmt:
		if n.CopyStmt.IsFrom {
			return "COPY FROM"
		}
		return "COPY TO"
	case *pg_query.Node_VariableSetStmt:
		return "SET"
	case *pg_query.Node_VariableShowStmt:
		return "SHOW"
	case *pg_query.Node_TransactionStmt:
		return "TRANSACTION"
	case *pg_query.Node_DoStmt:
		return "DO"
	default:
		return "STATEMENT"
	}
}

// checkNode recursively checks a single AST node and its CTEs.
func (c *Checker) checkNode(node *pg_query.Node) error {
	if node == nil {
		return nil
	}

	if err := c.checkCTEs(node); err != nil {
		return err
	}

	if c.config.ReadOnly {
		if err := c.checkReadOnly(node); err != nil {
			return err
		}
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_VariableSetStmt:
		if isTransactionReadOnlyVar(n.VariableSetStmt.Name) {
			return fmt.Errorf("SET %s is not allowed: cannot change the transaction read-only setting", n.VariableSetStmt.Name)
		}
		if !c.config.AllowSet {
			if n.VariableSetStmt.Kind == pg_query.VariableSetKind_VAR_RESET ||
				n.VariableSetStmt.Kind == pg_query.VariableSetKind_VAR_RESET_ALL {
				return fmt.Errorf("RESET statements are not allowed")
			}
			return fmt.Errorf("SET statements are not allowed: SET %s", n.VariableSetStmt.Name)
		}

	case *pg_query.Node_DropStmt:
		if !c.config.AllowDrop {
			return fmt.Errorf("DROP statements are not allowed")
		}

	case *pg_query.Node_DropdbStmt:
		if !c.config.AllowDrop {
			return fmt.Errorf("DROP DATABASE is not allowed")
		}

	case *pg_query.Node_TruncateStmt:
		if !c.config.AllowTruncate {
			return fmt.Errorf("TRUNCATE statements are not allowed")
		}

	case *pg_query.Node_DoStmt:
		if !c.config.AllowDo {
			return fmt.Errorf("DO $$ blocks are not allowed: DO blocks can execute arbitrary SQL bypassing guard checks")
		}

	case *pg_query.Node_DeleteStmt:
		if !c.config.AllowDeleteWithoutWhere && n.DeleteStmt.WhereClause == nil {
			return fmt.Errorf("DELETE without WHERE clause is not allowed")
		}

	case *pg_query.Node_UpdateStmt:
		if !c.config.AllowUpdateWithoutWhere && n.UpdateStmt.WhereClause == nil {
			return fmt.Errorf("UPDATE without WHERE clause is not allowed")
		}

	case *pg_query.Node_CopyStmt:
		if !c.config.AllowCopy {
			if n.CopyStmt.IsFrom {
				return fmt.Errorf("COPY FROM is not allowed")
			}
			return fmt.Errorf("COPY TO is not allowed: can export data from tables")
		}

	case *pg_query.Node_ExplainStmt:
		if n.ExplainStmt.Query != nil {
			return c.checkNode(n.ExplainStmt.Query)
		}

	case *pg_query.Node_AlterSystemStmt:
		return fmt.Errorf("ALTER SYSTEM is not allowed: modifies server-level configuration")

	case *pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt:
		if !c.config.AllowRoleManagement {
			return fmt.Errorf("GRANT/REVOKE statements are not allowed: can modify database permissions")
		}

	case *pg_query.Node_CreateRoleStmt, *pg_query.Node_AlterRoleStmt,
		*pg_query.Node_AlterRoleSetStmt, *pg_query.Node_DropRoleStmt:
		if !c.config.AllowRoleManagement {
			return fmt.Errorf("role management statements are not allowed")
		}

	case *pg_query.Node_VacuumStmt, *pg_query.Node_ClusterStmt,
		*pg_query.Node_ReindexStmt, *pg_query.Node_RefreshMatViewStmt:
		if !c.config.AllowMaintenance {
			return fmt.Errorf("maintenance statements (VACUUM/ANALYZE/CLUSTER/REINDEX/REFRESH) are not allowed: they can acquire heavy locks and cause significant I/O load")
		}

	case *pg_query.Node_CreateStmt, *pg_query.Node_AlterTableStmt,
		*pg_query.Node_IndexStmt, *pg_query.Node_CreateSchemaStmt,
		*pg_query.Node_ViewStmt, *pg_query.Node_CreateSeqStmt,
		*pg_query.Node_AlterSeqStmt, *pg_query.Node_CreateTableAsStmt,
		*pg_query.Node_RenameStmt, *pg_query.Node_CreateFunctionStmt,
		*pg_query.Node_CreateTrigStmt, *pg_query.Node_CreateExtensionStmt:
		if !c.config.AllowDDL {
			return fmt.Errorf("DDL statements are not allowed")
		}

	case *pg_query.Node_TransactionStmt:
		return fmt.Errorf("transaction control statements are not allowed: each query runs in a managed transaction")
	}
	return nil
}

// checkReadOnly rejects statements that write when the guard is in
// read-only mode. The database session enforces read-only too (via
// default_transaction_read_only); this check exists so validate_sql can
// report the rejection without touching the server.
func (c *Checker) checkReadOnly(node *pg_query.Node) error {
	switch n := node.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return fmt.Errorf("INSERT is not allowed in read-only mode")
	case *pg_query.Node_UpdateStmt:
		return fmt.Errorf("UPDATE is not allowed in read-only mode")
	case *pg_query.Node_DeleteStmt:
		return fmt.Errorf("DELETE is not allowed in read-only mode")
	case *pg_query.Node_MergeStmt:
		return fmt.Errorf("MERGE is not allowed in read-only mode")
	case *pg_query.Node_VariableSetStmt:
		if n.VariableSetStmt.Kind == pg_query.VariableSetKind_VAR_RESET_ALL {
			return fmt.Errorf("RESET ALL is blocked in read-only mode: could disable the read-only transaction setting")
		}
		if isTransactionReadOnlyVar(n.VariableSetStmt.Name) {
			return fmt.Errorf("SET %s is blocked in read-only mode", n.VariableSetStmt.Name)
		}
	}
	return nil
}

// checkCTEs extracts the WITH clause from a node (if any) and recursively
// checks each CTE's subquery, so a data-modifying CTE cannot smuggle a
// blocked statement past the guard.
func (c *Checker) checkCTEs(node *pg_query.Node) error {
	var withClause *pg_query.WithClause
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		withClause = n.SelectStmt.WithClause
	case *pg_query.Node_InsertStmt:
		withClause = n.InsertStmt.WithClause
	case *pg_query.Node_UpdateStmt:
		withClause = n.UpdateStmt.WithClause
	case *pg_query.Node_DeleteStmt:
		withClause = n.DeleteStmt.WithClause
	case *pg_query.Node_MergeStmt:
		withClause = n.MergeStmt.WithClause
	}
	if withClause == nil {
		return nil
	}
	for _, cte := range withClause.Ctes {
		cteNode, ok := cte.Node.(*pg_query.Node_CommonTableExpr)
		if !ok {
			continue
		}
		if err := c.checkNode(cteNode.CommonTableExpr.Ctequery); err != nil {
			return err
		}
	}
	return nil
}

func isTransactionReadOnlyVar(name string) bool {
	return name == "default_transaction_read_only" || name == "transaction_read_only"
}
