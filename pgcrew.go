package pgcrew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mkarsten/pgcrew/internal/guidance"
	"github.com/mkarsten/pgcrew/internal/sanitize"
	"github.com/mkarsten/pgcrew/internal/sqlguard"
	"github.com/mkarsten/pgcrew/internal/timeout"
)

// Engine is the database core behind the execute_sql, validate_sql,
// list_tables, and describe_table tools. All exported methods are safe
// for concurrent use from multiple goroutines; the tools themselves only
// ever read the handle.
type Engine struct {
	config    Config
	pool      *pgxpool.Pool
	semaphore chan struct{}
	guard     *sqlguard.Checker
	sanitizer *sanitize.Sanitizer
	guidance  *guidance.Matcher
	timeouts  *timeout.Manager
	logger    zerolog.Logger
}

// New creates a new Engine. connString is the PostgreSQL connection
// string (must include credentials); see ConnParams for assembling one
// from the PG_* environment variables.
// Panics on invalid config. Returns an error only for runtime failures
// (e.g. pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*Engine, error) {
	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("pgcrew: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("pgcrew: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("pgcrew: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("pgcrew: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("pgcrew: query.describe_table_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("pgcrew: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("pgcrew: query.max_result_length must be > 0")
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgcrew: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgcrew: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgcrew: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	// Session-level settings applied to every pooled connection.
	if config.ReadOnly || config.Timezone != "" {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if config.ReadOnly {
				if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
					return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
				}
			}
			if config.Timezone != "" {
				escaped := strings.ReplaceAll(config.Timezone, "'", "''")
				if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
					return fmt.Errorf("failed to SET timezone: %w", err)
				}
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// --- Initialize internal components ---

	guard := sqlguard.NewChecker(sqlguard.Config{
		AllowSet:                config.Guard.AllowSet,
		AllowDrop:               config.Guard.AllowDrop,
		AllowTruncate:           config.Guard.AllowTruncate,
		AllowDo:                 config.Guard.AllowDo,
		AllowCopy:               config.Guard.AllowCopy,
		AllowDeleteWithoutWhere: config.Guard.AllowDeleteWithoutWhere,
		AllowUpdateWithoutWhere: config.Guard.AllowUpdateWithoutWhere,
		AllowDDL:                config.Guard.AllowDDL,
		AllowMaintenance:        config.Guard.AllowMaintenance,
		AllowRoleManagement:     config.Guard.AllowRoleManagement,
		ReadOnly:                config.ReadOnly,
	})

	sanitizeRules := make([]sanitize.Rule, len(config.Sanitization))
	for i, r := range config.Sanitization {
		sanitizeRules[i] = sanitize.Rule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	sanitizer, err := sanitize.NewSanitizer(sanitizeRules)
	if err != nil {
		pool.Close()
		return nil, err
	}

	guidanceRules := make([]guidance.Rule, len(config.Guidance))
	for i, r := range config.Guidance {
		guidanceRules[i] = guidance.Rule{Pattern: r.Pattern, Message: r.Message}
	}
	matcher, err := guidance.NewMatcher(guidanceRules)
	if err != nil {
		pool.Close()
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		if r.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pgcrew: timeout_rule with pattern %q has timeout_seconds <= 0", r.Pattern))
		}
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	timeouts, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Engine{
		config:    config,
		pool:      pool,
		semaphore: make(chan struct{}, config.Pool.MaxConns),
		guard:     guard,
		sanitizer: sanitizer,
		guidance:  matcher,
		timeouts:  timeouts,
		logger:    logger,
	}, nil
}

// Ping verifies database connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close closes the connection pool. Accepts context for API
// forward-compatibility; pgxpool.Pool.Close() does not support
// context-based shutdown.
func (e *Engine) Close(ctx context.Context) {
	e.pool.Close()
}

// acquireSlot takes a semaphore slot, respecting context cancellation to
// prevent deadlock when all connection slots are in use.
func (e *Engine) acquireSlot(ctx context.Context, op string) (release func(), err error) {
	select {
	case e.semaphore <- struct{}{}:
		return func() { <-e.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", op, cap(e.semaphore), ctx.Err())
	}
}
