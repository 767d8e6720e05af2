// Package main is the entry point for agrilinkctl, the operator CLI. It
// shares configuration with the API server and talks to the same database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/agrilink/cmd/agrilinkctl/internal/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "agrilinkctl",
		Short: "Operator tools for the AgriLink marketplace",
		Long: `agrilinkctl runs maintenance tasks against the AgriLink database.

It reads the same environment as the server (DB_DRIVER, DATABASE_URL and,
for commands that go through the services, JWT_SECRET), including an
optional .env file in the working directory.`,
		SilenceUsage: true,
	}

	commands.Register(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("command execution failed: %w", err)
	}
	return nil
}
