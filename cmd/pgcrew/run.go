package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	pgcrew "github.com/mkarsten/pgcrew"
	"github.com/mkarsten/pgcrew/crew"
)

const (
	defaultModel   = anthropic.ModelClaudeSonnet4_5_20250929
	agentMaxTokens = 4096
)

// runCrew runs the demo flow: list the tables in the database, and when
// the demo items table shows up in the listing, list its contents too.
func runCrew() error {
	ctx := context.Background()

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	logger := runLogger()

	params := demoDefaults(pgcrew.ConnParamsFromEnv())
	engine, err := pgcrew.New(ctx, params.URI(), demoConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Close(ctx)

	logger.Info().Msg("testing database connection")
	if err := engine.Ping(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	model := defaultModel
	if m := os.Getenv("PGCREW_MODEL"); m != "" {
		model = anthropic.Model(m)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	llm := crew.NewAnthropicClient(client, model, agentMaxTokens, 0)

	agent := &crew.Agent{
		Role: "Senior PostgreSQL Database Engineer",
		Goal: "Perform safe and efficient CRUD operations on PostgreSQL",
		Backstory: "You have spent a decade operating production PostgreSQL clusters. " +
			"You write precise SQL, check your statements before running anything destructive, " +
			"and report results clearly and completely.",
		Tools: pgcrew.CrewTools(engine),
	}

	tablesResult, err := dispatch(ctx, agent, llm, logger,
		"List all available tables in the database",
		"A list of every table the current user can read, with its schema and type.")
	if err != nil {
		return err
	}
	fmt.Println("Tables in database:")
	fmt.Println(tablesResult)

	if !shouldListItems(tablesResult) {
		fmt.Println("No items table found in the database")
		return nil
	}

	itemsResult, err := dispatch(ctx, agent, llm, logger,
		"List all items with their status and creation date",
		"Every row from the items table showing at least name, status, and created_at.")
	if err != nil {
		return err
	}
	fmt.Println("Items:")
	fmt.Println(itemsResult)
	return nil
}

// dispatch runs a single natural-language operation through the agent
// and returns its final text answer.
func dispatch(ctx context.Context, agent *crew.Agent, llm crew.LLMClient, logger zerolog.Logger, description, expected string) (string, error) {
	c, err := crew.New(crew.Config{
		Agent:  agent,
		Tasks:  []crew.Task{{Description: description, ExpectedOutput: expected}},
		LLM:    llm,
		Logger: logger,
	})
	if err != nil {
		return "", err
	}
	return c.Kickoff(ctx)
}

// shouldListItems reports whether the table listing mentions the demo
// items table. The match is case-insensitive on the literal table name.
func shouldListItems(tablesResult string) bool {
	return strings.Contains(strings.ToLower(tablesResult), "blah")
}

// demoDefaults fills in the demo connection values for any parameter not
// provided through the environment.
func demoDefaults(p pgcrew.ConnParams) pgcrew.ConnParams {
	if p.User == "" {
		p.User = "user_name"
	}
	if p.Password == "" {
		p.Password = "your_password"
	}
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == "" {
		p.Port = "5432"
	}
	if p.Database == "" {
		p.Database = "postgres"
	}
	return p
}

// demoConfig is the engine configuration for the run command. CRUD and
// DDL are allowed so the agent can create the tables it needs; the
// blanket protections (DROP, TRUNCATE, DELETE without WHERE) stay on.
func demoConfig() pgcrew.Config {
	return pgcrew.Config{
		Pool: pgcrew.PoolConfig{
			MaxConns: 4,
		},
		Guard: pgcrew.GuardConfig{
			AllowDDL: true,
		},
		Query: pgcrew.QueryConfig{
			DefaultTimeoutSeconds:       30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
		},
	}
}

func runLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("PGCREW_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
