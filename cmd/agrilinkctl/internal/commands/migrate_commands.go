package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sakif/agrilink/internal/repository/sqlstore"
)

// MigrateCommandHandler applies and rolls back the embedded migrations.
type MigrateCommandHandler struct{}

// UpCmd applies every pending migration.
func (h *MigrateCommandHandler) UpCmd(cmd *cobra.Command, _ []string) error {
	s, err := readDatabaseSettings()
	if err != nil {
		return err
	}
	if err := sqlstore.Migrate(s.Driver, s.URL); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", s.Driver)
	return nil
}

// DownCmd rolls back the last n migrations, or all of them with --all.
func (h *MigrateCommandHandler) DownCmd(cmd *cobra.Command, args []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("invalid all flag: %w", err)
	}

	n := 1
	switch {
	case all && len(args) > 0:
		return fmt.Errorf("pass either a step count or --all, not both")
	case all:
		n = 0
	case len(args) == 1:
		n, err = strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("step count must be a positive integer, got %q", args[0])
		}
	}

	s, err := readDatabaseSettings()
	if err != nil {
		return err
	}
	if err := sqlstore.MigrateDown(s.Driver, s.URL, n); err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "rolled back all migrations")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", n)
	}
	return nil
}

// InitMigrateCommands registers "migrate up" and "migrate down".
func InitMigrateCommands(rootCmd *cobra.Command) {
	handler := &MigrateCommandHandler{}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  handler.UpCmd,
	}

	downCmd := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  handler.DownCmd,
	}
	downCmd.Flags().Bool("all", false, "Roll back every migration")

	migrateCmd.AddCommand(upCmd, downCmd)
	rootCmd.AddCommand(migrateCmd)
}
