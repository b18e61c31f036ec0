package pgcrew

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool"`
	Guard        GuardConfig        `json:"guard"`
	Query        QueryConfig        `json:"query"`
	Guidance     []GuidanceRule     `json:"guidance"`
	Sanitization []SanitizationRule `json:"sanitization"`
	ReadOnly     bool               `json:"read_only"`
	Timezone     string             `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by serve mode.
// The run command ignores it and builds its connection string from the
// PG_* environment variables instead.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds HTTP server settings for serve mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// GuardConfig controls which SQL statement classes the guard allows.
// All fields default to false (blocked). Set to true to allow.
type GuardConfig struct {
	AllowSet                bool `json:"allow_set"`
	AllowDrop               bool `json:"allow_drop"`
	AllowTruncate           bool `json:"allow_truncate"`
	AllowDo                 bool `json:"allow_do"`
	AllowCopy               bool `json:"allow_copy"`
	AllowDeleteWithoutWhere bool `json:"allow_delete_without_where"`
	AllowUpdateWithoutWhere bool `json:"allow_update_without_where"`
	AllowDDL                bool `json:"allow_ddl"`
	AllowMaintenance        bool `json:"allow_maintenance"`
	AllowRoleManagement     bool `json:"allow_role_management"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// GuidanceRule maps an error message pattern to a steering message that
// is appended to the error text the agent sees.
type GuidanceRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based field sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
