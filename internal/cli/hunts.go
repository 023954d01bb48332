package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var huntsCmd = &cobra.Command{
	Use:   "hunts",
	Short: "Inspect saved hunts",
}

var huntsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved hunts",
	Long: `List the hunts in progress as last saved.

Examples:
  shinyhunt hunts list`,
	Args: cobra.NoArgs,
	RunE: runHuntsList,
}

func init() {
	huntsCmd.AddCommand(huntsListCmd)
}

func runHuntsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	if _, err := app.Coordinator.Load(ctx); err != nil {
		return err
	}
	newShell(app.Registry, cmd.OutOrStdout()).list()
	return nil
}
