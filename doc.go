// Package pgcrew wires a PostgreSQL database into an LLM-driven agent.
//
// It exposes four tools — execute_sql, validate_sql, describe_table, and
// list_tables — backed by a shared connection pool and a full execution
// pipeline: AST-based statement guarding, pattern-based timeouts, result
// sanitization and truncation, and error guidance that steers the agent
// when a query fails.
//
// Statement guarding uses PostgreSQL's actual C parser via pg_query, so
// rules like "no DELETE without WHERE" or "read-only" are evaluated on
// the real AST rather than on string matching.
//
// # Library Usage
//
//	eng, err := pgcrew.New(ctx, connString, pgcrew.Config{
//		Pool:     pgcrew.PoolConfig{MaxConns: 10},
//		ReadOnly: true,
//		Query: pgcrew.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	// Use directly
//	out := eng.Query(ctx, pgcrew.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or hand the tools to a crew agent
//	agent := &crew.Agent{
//		Role:  "Senior PostgreSQL Database Engineer",
//		Goal:  "Perform safe and efficient CRUD operations on PostgreSQL",
//		Tools: pgcrew.CrewTools(eng),
//	}
//
// The tool wrappers returned by CrewTools never fail: every engine error
// is converted into a human-readable string with a fixed prefix
// ("Execution failed:", "Validation failed:", "Table description failed:",
// "Table listing failed:") so the agent always receives a normal tool
// result it can reason about.
//
// The same four tools can also be served over the Model Context Protocol
// with RegisterMCPTools.
package pgcrew
