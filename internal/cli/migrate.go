package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/shinyhunt/internal/adapters/turso"
	"github.com/emiliopalmerini/shinyhunt/internal/config"
	"github.com/emiliopalmerini/shinyhunt/internal/migrate"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  shinyhunt migrate      # Run all pending migrations
  shinyhunt migrate 1    # Migrate to version 1
  shinyhunt migrate 0    # Rollback all migrations`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dataDir, err := util.EnsureXDGDataDir()
	if err != nil {
		return err
	}

	db, err := turso.Open(ctx, turso.Options{
		URL:       cfg.Database.URL,
		AuthToken: cfg.Database.AuthToken,
		DataDir:   dataDir,
		Ping:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	m, err := migrate.New(db, out)
	if err != nil {
		return err
	}

	current, _, err := m.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d\n", current)

	target := m.Latest()
	if len(args) == 1 {
		target, err = strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
	}

	steps, err := m.To(ctx, target)
	if err != nil {
		return err
	}
	if steps == 0 {
		fmt.Fprintln(out, "No migrations to run")
		return nil
	}
	fmt.Fprintf(out, "Migrated to version %d (%d migrations applied)\n", target, steps)
	return nil
}
