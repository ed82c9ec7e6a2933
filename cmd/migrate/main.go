// Package main applies the embedded database migrations and exits.
// Intended for deploy pipelines that migrate before rolling the API;
// the API also migrates on startup for single-node setups.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"gardenwatch/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := db.Migrate(databaseURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Println("migrations applied")
	return nil
}
