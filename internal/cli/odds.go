package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/shinyhunt/internal/config"
	"github.com/emiliopalmerini/shinyhunt/internal/odds"
)

var oddsCmd = &cobra.Command{
	Use:   "odds [game] [method] [modifier...]",
	Short: "Show shiny odds",
	Long: `Show the odds reference table.

Without arguments, lists the known games. With a game, lists its methods
and modifiers. With a game and a method, prints the odds for the given
modifiers.

Examples:
  shinyhunt odds                             # Known games
  shinyhunt odds sv                          # Methods and modifiers of sv
  shinyhunt odds sv masuda shiny_charm       # Odds with the shiny charm
  shinyhunt odds bdsp pokeradar --at 40      # Progressive odds at 40 checks`,
	RunE: runOdds,
}

var oddsAt int

func init() {
	oddsCmd.Flags().IntVar(&oddsAt, "at", 0, "Checks to evaluate progressive odds at")
}

func runOdds(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	table, err := loadOddsTable(cfg.OddsFile)
	if err != nil {
		return err
	}
	return printOdds(cmd.OutOrStdout(), odds.NewEngine(table), args, oddsAt)
}

func printOdds(out io.Writer, engine *odds.Engine, args []string, at int) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	switch len(args) {
	case 0:
		fmt.Fprintln(w, "GAME\tNAME\tBASE")
		for _, key := range engine.Games() {
			g, _ := engine.Game(key)
			fmt.Fprintf(w, "%s\t%s\t1/%.0f\n", key, g.Name, g.Base)
		}
		return w.Flush()
	case 1:
		g, ok := engine.Game(args[0])
		if !ok {
			return fmt.Errorf("unknown game %q", args[0])
		}
		fmt.Fprintln(w, "METHOD\tNAME\tODDS")
		for _, key := range sortedKeys(g.Methods) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, g.Methods[key].Name,
				engine.Compute(args[0], key, nil).Format(0))
		}
		if len(g.Modifiers) > 0 {
			fmt.Fprintf(w, "\nModifiers:\t%s\n", strings.Join(sortedKeys(g.Modifiers), ", "))
		}
		return w.Flush()
	}

	mods := parseModifiers(args[2:])
	o := engine.Compute(args[0], args[1], mods)
	if !o.Available() {
		return fmt.Errorf("no odds for %s/%s", args[0], args[1])
	}
	fmt.Fprintf(w, "Game:\t%s\n", args[0])
	fmt.Fprintf(w, "Method:\t%s\n", args[1])
	if enabled := mods.Enabled(); len(enabled) > 0 {
		fmt.Fprintf(w, "Modifiers:\t%s\n", strings.Join(enabled, ", "))
	}
	fmt.Fprintf(w, "Odds:\t%s\n", o.Format(at))
	return w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
