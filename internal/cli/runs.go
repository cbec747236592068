package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunDetail is one run with the records it left unresolved.
type RunDetail struct {
	store.Run
	Unresolved []ir.Record `json:"unresolved"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs stored in a database",
		Long: `List the runs "spy parse --db" recorded, oldest first.

With --run, show one run's summary and every record it left unresolved.

Examples:
  spy runs --db ./spy.db
  spy runs --db ./spy.db --run 0190c1d2-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default SPY_DB)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DBPath
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "a database is required: pass --db or set SPY_DB")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return out.Success(runs)
		}
		return outputRunsText(out, runs)
	}

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.Format == "json" {
			if jsonErr := out.Error(CodeRunNotFound, err.Error(), nil); jsonErr != nil {
				return jsonErr
			}
		}
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load run", err)
	}

	unresolved, err := st.ListUnresolved(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load unresolved records", err)
	}

	detail := RunDetail{Run: run, Unresolved: unresolved}
	if opts.Format == "json" {
		return out.JSON(CLIResponse{Status: "ok", Data: detail, RunID: run.ID})
	}
	return outputRunDetailText(out, detail)
}

func outputRunsText(out *OutputFormatter, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tSTATUS\tLINES\tAPPLIED\tPASSES\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.Seq, r.ID, r.Status, r.Summary.Lines, r.Summary.Applied, r.Summary.Passes, r.Source)
	}
	return tw.Flush()
}

func outputRunDetailText(out *OutputFormatter, d RunDetail) error {
	w := out.Writer
	s := d.Summary
	fmt.Fprintf(w, "Run:        %s (#%d)\n", d.ID, d.Seq)
	fmt.Fprintf(w, "Source:     %s\n", d.Source)
	fmt.Fprintf(w, "Status:     %s\n", d.Status)
	fmt.Fprintf(w, "Lines:      %d (%d unparsed, %d malformed)\n", s.Lines, s.Unparsed, s.Malformed)
	fmt.Fprintf(w, "Applied:    %d\n", s.Applied)
	fmt.Fprintf(w, "Deferred:   %d\n", s.DeferredInitially)
	fmt.Fprintf(w, "Passes:     %d\n", s.Passes)
	if d.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", d.Error)
	}
	if len(d.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved (%d):\n", len(d.Unresolved))
		for _, rec := range d.Unresolved {
			fmt.Fprintf(w, "  %s\n", rec)
		}
	}
	return nil
}
