package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		if err := runCrew(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "doctor":
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pgcrew — PostgreSQL CRUD agent")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pgcrew run       Run the CRUD agent demo against the configured database")
	fmt.Println("  pgcrew serve     Expose the database tools as an MCP server")
	fmt.Println("  pgcrew doctor    Check configuration and database connectivity")
	fmt.Println("  pgcrew --help    Show this help message")
}
