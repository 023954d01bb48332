package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Inspect the collection of caught Pokémon",
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collection records",
	Long: `List one record per Pokémon with the hunts that caught it.

Examples:
  shinyhunt collection list            # One line per Pokémon
  shinyhunt collection list --entries  # Every caught entry`,
	Args: cobra.NoArgs,
	RunE: runCollectionList,
}

var collectionEntries bool

func init() {
	collectionCmd.AddCommand(collectionListCmd)

	collectionListCmd.Flags().BoolVarP(&collectionEntries, "entries", "e", false, "Show every caught entry")
}

func runCollectionList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	records, err := app.Collection.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collection: %w", err)
	}
	return printCollection(cmd.OutOrStdout(), records, collectionEntries)
}

func printCollection(out io.Writer, records []*domain.CollectionEntry, entries bool) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "Collection is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if !entries {
		fmt.Fprintln(w, "POKEMON\tCAUGHT\tCHECKS\tTIME\tLAST")
		fmt.Fprintln(w, "-------\t------\t------\t----\t----")
		for _, r := range records {
			var checks, elapsed int64
			for _, e := range r.Entries {
				checks += int64(e.Checks)
				elapsed += e.ElapsedMs
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				r.Key, len(r.Entries), util.FormatNumber(checks),
				util.FormatDurationMs(elapsed), util.FormatDateHuman(r.UpdatedAt))
		}
		return w.Flush()
	}

	fmt.Fprintln(w, "POKEMON\tDATE\tGAME\tMETHOD\tCHECKS\tTIME\tBALL\tMARK\tMODIFIERS")
	fmt.Fprintln(w, "-------\t----\t----\t------\t------\t----\t----\t----\t---------")
	for _, r := range records {
		for _, e := range r.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Key, util.FormatDateHuman(e.Date), e.Game, e.Method,
				util.FormatNumber(int64(e.Checks)), util.FormatDurationMs(e.ElapsedMs),
				dash(e.Ball), dash(e.Mark), dash(strings.Join(e.Modifiers.Enabled(), ",")))
		}
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
