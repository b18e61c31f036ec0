// Package timeout resolves per-query execution timeouts. A query is
// matched against configured regex rules (first match wins); unmatched
// queries get the default timeout.
package timeout

import (
	"fmt"
	"regexp"
	"time"
)

// Rule maps a SQL pattern to a timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves query timeouts based on SQL pattern matching.
type Manager struct {
	rules          []compiledRule
	defaultTimeout time.Duration
}

// NewManager creates a new Manager. Returns an error on invalid regex patterns.
func NewManager(config Config) (*Manager, error) {
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("timeout: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{rules: compiled, defaultTimeout: config.DefaultTimeout}, nil
}

// GetTimeout returns the timeout for the given SQL.
// First matching rule wins. Falls back to the default.
func (m *Manager) GetTimeout(sql string) time.Duration {
	timeout, _ := m.GetTimeoutWithPattern(sql)
	return timeout
}

// GetTimeoutWithPattern returns the timeout for the given SQL along with
// the pattern that matched, or an empty pattern for the default timeout.
func (m *Manager) GetTimeoutWithPattern(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}
