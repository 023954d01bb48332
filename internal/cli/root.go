package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shinyhunt",
	Short: "Shiny hunt tracker",
	Long: `shinyhunt tracks shiny hunts: encounter counts, time spent per
encounter, and the current odds for each game and method.

Hunts are saved automatically while you play. Completed hunts are
recorded into your collection.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(huntsCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(oddsCmd)
	rootCmd.AddCommand(migrateCmd)
}
