package pgcrew

import (
	"fmt"
	"os"
)

// ConnParams holds the five fields a PostgreSQL connection URI is
// assembled from. Values are used verbatim — no validation, no defaults,
// no escaping.
type ConnParams struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// URI renders the connection string in the exact form
// postgresql://{user}:{password}@{host}:{port}/{database}.
func (p ConnParams) URI() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// ConnParamsFromEnv reads the connection parameters from the PG_USER,
// PG_PASSWORD, PG_HOST, PG_PORT, and PG_DATABASE environment variables.
func ConnParamsFromEnv() ConnParams {
	return ConnParams{
		User:     os.Getenv("PG_USER"),
		Password: os.Getenv("PG_PASSWORD"),
		Host:     os.Getenv("PG_HOST"),
		Port:     os.Getenv("PG_PORT"),
		Database: os.Getenv("PG_DATABASE"),
	}
}
