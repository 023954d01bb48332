package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/hunt"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track hunts interactively",
	Long: `Open an interactive shell over your hunts.

Saved hunts are loaded paused. Every change is saved in the background,
and the latest state is saved once more on exit or Ctrl-C.

Type "help" inside the shell for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close(context.WithoutCancel(ctx))

	n, err := app.Coordinator.Load(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if n > 0 {
		fmt.Fprintf(out, "Loaded %d hunts (paused)\n", n)
	}

	sh := newShell(app.Registry, out)
	if hunts := app.Registry.List(); len(hunts) > 0 {
		sh.current = hunts[len(hunts)-1].ID
	}
	err = sh.run(ctx, cmd.InOrStdin())

	app.Coordinator.Teardown(context.WithoutCancel(ctx))
	return err
}

// shell is the line-oriented front end of the registry. It keeps a current
// hunt that most commands apply to.
type shell struct {
	registry *hunt.Registry
	out      io.Writer
	current  string
}

func newShell(registry *hunt.Registry, out io.Writer) *shell {
	return &shell{registry: registry, out: out}
}

var errQuit = errors.New("quit")

const shellHelp = `Commands:
  start <pokemon> <game> <method> [modifier...]   start a new hunt
  use <n|id>                 select a hunt from "ls"
  ls                         list hunts
  show                       show the current hunt
  c                          add a check
  d                          remove a check
  p                          pause or resume
  pause | resume
  edit <game> <method> [modifier...]
  phase <label>              set the phase label
  set <checks> <elapsed> [increment]   e.g. set 120 1h30m 3
  reset                      zero checks and time
  done [ball] [mark] [notes...]        record into the collection
  rm                         delete the current hunt
  watch [ticks]              print the running interval
  quit
`

// run reads commands from in until quit, end of input or ctx is done.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(s.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			err := s.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
	}
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "help", "?":
		fmt.Fprint(s.out, shellHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "start":
		return s.start(ctx, args)
	case "use":
		return s.use(args)
	case "ls":
		s.list()
		return nil
	case "show":
		return s.show()
	case "watch":
		return s.watch(ctx, args)
	}

	id, err := s.selected()
	if err != nil {
		return err
	}

	var cmd hunt.Command
	switch name {
	case "c":
		cmd = hunt.AddCheck{}
	case "d":
		cmd = hunt.DecreaseCheck{}
	case "p":
		cmd = hunt.TogglePause{}
	case "pause":
		cmd = hunt.Pause{}
	case "resume":
		cmd = hunt.Resume{}
	case "reset":
		cmd = hunt.Reset{}
	case "rm":
		cmd = hunt.Delete{}
	case "edit":
		cmd, err = s.editCommand(id, args)
	case "phase":
		cmd, err = s.phaseCommand(id, args)
	case "set":
		cmd, err = s.setCommand(id, args)
	case "done":
		cmd = parseDone(args)
	default:
		return fmt.Errorf("unknown command %q, type help", name)
	}
	if err != nil {
		return err
	}

	res, err := s.registry.Apply(ctx, id, cmd)
	if err != nil {
		return err
	}
	s.report(res)
	return nil
}

func (s *shell) start(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: start <pokemon> <game> <method> [modifier...]")
	}
	res, err := s.registry.Apply(ctx, "", hunt.Start{
		Pokemon:   domain.PokemonRef{Key: args[0]},
		Game:      args[1],
		Method:    args[2],
		Modifiers: parseModifiers(args[3:]),
	})
	if err != nil {
		return err
	}
	s.current = res.Hunt.ID
	s.report(res)
	return nil
}

func (s *shell) use(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use <n|id>")
	}
	hunts := s.registry.List()
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(hunts) {
			return fmt.Errorf("no hunt #%d", n)
		}
		s.current = hunts[n-1].ID
		return s.show()
	}
	for _, h := range hunts {
		if strings.HasPrefix(h.ID, args[0]) {
			s.current = h.ID
			return s.show()
		}
	}
	return fmt.Errorf("%s: %w", args[0], domain.ErrHuntNotFound)
}

func (s *shell) selected() (string, error) {
	if s.current == "" {
		return "", errors.New("no hunt selected, use start or use")
	}
	if _, ok := s.registry.Get(s.current); !ok {
		s.current = ""
		return "", errors.New("the selected hunt is gone, use start or use")
	}
	return s.current, nil
}

func (s *shell) editCommand(id string, args []string) (hunt.Command, error) {
	if len(args) < 2 {
		return nil, errors.New("usage: edit <game> <method> [modifier...]")
	}
	h, _ := s.registry.Get(id)
	return hunt.EditDetails{
		Game:      args[0],
		Method:    args[1],
		Pokemon:   h.Pokemon,
		Modifiers: parseModifiers(args[2:]),
	}, nil
}

func (s *shell) phaseCommand(id string, args []string) (hunt.Command, error) {
	h, _ := s.registry.Get(id)
	phase := strings.Join(args, " ")
	return hunt.EditDetails{
		Game:      h.Game,
		Method:    h.Method,
		Pokemon:   h.Pokemon,
		Modifiers: h.Modifiers,
		Phase:     &phase,
	}, nil
}

// setCommand keeps the hunt's increment unless a new one is given.
func (s *shell) setCommand(id string, args []string) (hunt.Command, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errors.New("usage: set <checks> <elapsed> [increment]")
	}
	checks, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid checks %q", args[0])
	}
	elapsed, err := time.ParseDuration(args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid elapsed time %q, use e.g. 1h30m", args[1])
	}
	h, _ := s.registry.Get(id)
	increment := h.Increment
	if len(args) == 3 {
		if increment, err = strconv.Atoi(args[2]); err != nil {
			return nil, fmt.Errorf("invalid increment %q", args[2])
		}
	}
	return hunt.OverrideSettings{
		Checks:         checks,
		TotalElapsedMs: elapsed.Milliseconds(),
		Increment:      increment,
	}, nil
}

func parseDone(args []string) hunt.Command {
	var c hunt.Complete
	if len(args) > 0 {
		c.Ball = args[0]
	}
	if len(args) > 1 {
		c.Mark = args[1]
	}
	if len(args) > 2 {
		c.Notes = strings.Join(args[2:], " ")
	}
	return c
}

func parseModifiers(names []string) domain.Modifiers {
	mods := domain.Modifiers{}
	for _, name := range names {
		mods[strings.TrimPrefix(name, "+")] = true
	}
	return mods
}

func (s *shell) report(res hunt.Result) {
	h := res.Hunt
	switch {
	case res.Debounced:
		fmt.Fprintln(s.out, "ignored: toggled too quickly")
	case res.Kind == hunt.KindComplete:
		fmt.Fprintf(s.out, "%s caught after %s checks in %s\n",
			h.Pokemon.Key, util.FormatNumber(int64(h.Checks)), util.FormatDurationMs(h.TotalElapsedMs))
		s.current = ""
	case res.Kind == hunt.KindDelete:
		fmt.Fprintf(s.out, "%s deleted\n", h.Pokemon.Key)
		s.current = ""
	case res.Kind == hunt.KindAddCheck:
		fmt.Fprintf(s.out, "%s  +%s\n", s.line(h), util.FormatDurationMs(res.CreditedMs))
	case !res.Changed:
		fmt.Fprintf(s.out, "%s  (unchanged)\n", s.line(h))
	default:
		fmt.Fprintln(s.out, s.line(h))
	}
}

func (s *shell) line(h domain.Hunt) string {
	return fmt.Sprintf("%s [%s/%s] %s checks  %s  odds %s  %s",
		h.Pokemon.Key, h.Game, h.Method, util.FormatNumber(int64(h.Checks)),
		util.FormatDurationMs(h.TotalElapsedMs), h.Odds.Format(h.Checks), h.Status)
}

func (s *shell) list() {
	hunts := s.registry.List()
	if len(hunts) == 0 {
		fmt.Fprintln(s.out, "No hunts")
		return
	}
	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\t#\tPOKEMON\tGAME\tMETHOD\tCHECKS\tTIME\tODDS\tSTATUS")
	for i, h := range hunts {
		marker := ""
		if h.ID == s.current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			marker, i+1, h.Pokemon.Key, h.Game, h.Method,
			util.FormatNumber(int64(h.Checks)), util.FormatDurationMs(h.TotalElapsedMs),
			h.Odds.Format(h.Checks), h.Status)
	}
	w.Flush()
}

func (s *shell) show() error {
	id, err := s.selected()
	if err != nil {
		return err
	}
	h, _ := s.registry.Get(id)
	interval, _ := s.registry.Elapsed(id)

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", h.ID)
	fmt.Fprintf(w, "Pokemon:\t%s\n", h.Pokemon.Key)
	fmt.Fprintf(w, "Game:\t%s\n", h.Game)
	fmt.Fprintf(w, "Method:\t%s\n", h.Method)
	if mods := h.Modifiers.Enabled(); len(mods) > 0 {
		fmt.Fprintf(w, "Modifiers:\t%s\n", strings.Join(mods, ", "))
	}
	if h.Phase != "" {
		fmt.Fprintf(w, "Phase:\t%s\n", h.Phase)
	}
	fmt.Fprintf(w, "Checks:\t%s (+%d)\n", util.FormatNumber(int64(h.Checks)), h.Increment)
	fmt.Fprintf(w, "Time:\t%s\n", util.FormatDurationMs(h.TotalElapsedMs))
	fmt.Fprintf(w, "Interval:\t%s\n", util.FormatDurationMs(interval.Milliseconds()))
	fmt.Fprintf(w, "Odds:\t%s\n", h.Odds.Format(h.Checks))
	fmt.Fprintf(w, "Status:\t%s\n", h.Status)
	fmt.Fprintf(w, "Started:\t%s\n", util.FormatDateHuman(h.StartedAt))
	return w.Flush()
}

// watch prints the open interval of the current hunt once per tick.
func (s *shell) watch(ctx context.Context, args []string) error {
	id, err := s.selected()
	if err != nil {
		return err
	}
	ticks := 10
	if len(args) > 0 {
		if ticks, err = strconv.Atoi(args[0]); err != nil || ticks < 1 {
			return fmt.Errorf("invalid tick count %q", args[0])
		}
	}
	if h, _ := s.registry.Get(id); h.Paused {
		return errors.New("the hunt is paused, resume it first")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates, err := s.registry.Watch(ctx, id)
	if err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		secs, ok := <-updates
		if !ok {
			break
		}
		fmt.Fprintf(s.out, "  %s\n", util.FormatDurationMs(int64(secs)*1000))
	}
	return nil
}
