// Package main provides the ruler command-line tool.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/leapstack-labs/ruler/internal/cli"
)

func main() {
	// RULER_ overrides may live in a local .env file
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
