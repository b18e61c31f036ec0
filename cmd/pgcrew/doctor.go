package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	pgcrew "github.com/mkarsten/pgcrew"
)

const version = "1.0.0"

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", ".pgcrew/config.json", "Path to configuration file")
	skipDB := fs.Bool("no-db", false, "Skip the live database checks")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath, *skipDB)
}

func doctor(w io.Writer, useColor bool, configPath string, skipDB bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "pgcrew %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgcrew doctor' again.")
		return nil
	}

	if skipDB {
		return nil
	}

	fmt.Fprintln(w)
	return doctorCheckDatabase(w, useColor, config)
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pgcrew.ServerConfig, bool) {
	allPassed := true

	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config pgcrew.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	if config.Connection.DBName == "" {
		printCheck(w, useColor, false, "connection.dbname is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	// Fields the engine constructor panics on.
	if config.Pool.MaxConns <= 0 {
		printCheck(w, useColor, false, "pool.max_conns is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("pool.max_conns is > 0 (%d)", config.Pool.MaxConns))
	}
	if config.Query.DefaultTimeoutSeconds <= 0 ||
		config.Query.ListTablesTimeoutSeconds <= 0 ||
		config.Query.DescribeTableTimeoutSeconds <= 0 {
		printCheck(w, useColor, false, "query timeouts are all > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, "query timeouts are all > 0")
	}

	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	regexOK := true

	for i, rule := range config.Guidance {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("guidance[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return &config, allPassed
}

// doctorCheckDatabase connects, pings, and lists the visible tables.
// The connection string comes from PGCREW_PG_CONNSTRING or the PG_*
// environment variables; without either, the live checks are skipped.
func doctorCheckDatabase(w io.Writer, useColor bool, config *pgcrew.ServerConfig) error {
	connString := os.Getenv("PGCREW_PG_CONNSTRING")
	if connString == "" {
		params := pgcrew.ConnParamsFromEnv()
		if params.User == "" || params.Host == "" {
			fmt.Fprintln(w, "Set PGCREW_PG_CONNSTRING or the PG_* variables to run the live database checks.")
			return nil
		}
		connString = params.URI()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, err := pgcrew.New(ctx, connString, config.Config, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database pool created: %v", err))
		return nil
	}
	defer engine.Close(ctx)
	printCheck(w, useColor, true, "Database pool created")

	if err := engine.Ping(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return nil
	}
	printCheck(w, useColor, true, "Database reachable")

	output, err := engine.ListTables(ctx, pgcrew.ListTablesInput{})
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Table listing: %v", err))
		return nil
	}
	printCheck(w, useColor, true, fmt.Sprintf("Table listing (%d visible)", len(output.Tables)))

	if len(output.Tables) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Schema", "Name", "Type"})
	for _, t := range output.Tables {
		table.Append([]string{t.Schema, t.Name, t.Type})
	}
	table.Render()
	return nil
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}
