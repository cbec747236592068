package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/state"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Database string
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <log>",
		Short: "Replay a trace log and report the reconstructed graph",
		Long: `Replay a legion_spy trace log to a fixpoint.

Prints line counters and the number of entities reconstructed. If replay
stalls, every unresolved record is listed together with the references
nothing declared and any dependency cycles.

With --db (or SPY_DB) the run, its summary and any unresolved records are
stored in a SQLite database and can be listed with "spy runs".

Use "-" to read the log from stdin.

Exit codes:
  0 - Replay reached a fixpoint
  1 - Replay stalled or failed
  2 - Command error (unreadable log, bad database path)

Examples:
  spy parse trace.log
  spy parse trace.log --db ./spy.db
  spy parse trace.log --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default SPY_DB, or in-memory)")

	return cmd
}

func runParse(opts *ParseOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	var in io.Reader
	if path == "-" {
		in = cmd.InOrStdin()
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DBPath
	}

	report, err := replayLog(cmd.Context(), in, replayOptions{
		Path:         path,
		DBPath:       dbPath,
		MaxLineBytes: opts.Config.MaxLineBytes,
		Logger:       opts.logger(),
		Observer: func(p engine.PassStats) {
			out.VerboseLog("pass %d: attempted %d, resolved %d, remaining %d", p.Pass, p.Attempted, p.Resolved, p.Remaining)
		},
	})
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return outputParseJSON(out, report)
	}
	return outputParseText(out, report)
}

func outputParseJSON(out *OutputFormatter, report *Report) error {
	resp := CLIResponse{Status: "ok", Data: report, RunID: report.RunID}
	if report.Stalled() {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    CodeStall,
			Message: stallMessage(report),
			Details: report.Diagnosis.Hints(),
		}
	}
	if err := out.JSON(resp); err != nil {
		return err
	}
	if report.Stalled() {
		return NewExitError(ExitFailure, stallMessage(report))
	}
	return nil
}

func outputParseText(out *OutputFormatter, report *Report) error {
	w := out.Writer
	writeSummary(w, report)

	if !report.Stalled() {
		fmt.Fprintf(w, "%s replay complete\n", passMark())
		return nil
	}

	fmt.Fprintf(w, "\n%s %s\n", failMark(), stallMessage(report))
	for _, rec := range report.Unresolved {
		fmt.Fprintf(w, "  %s\n", rec)
	}
	if hints := report.Diagnosis.Hints(); len(hints) > 0 {
		fmt.Fprintln(w)
		for _, hint := range hints {
			fmt.Fprintf(w, "  hint: %s\n", hint)
		}
	}
	return NewExitError(ExitFailure, stallMessage(report))
}

func stallMessage(report *Report) string {
	return fmt.Sprintf("replay stalled in pass %d: %d record(s) unresolved", report.StallPass, len(report.Unresolved))
}

// writeSummary prints the counters and every non-zero census entry.
func writeSummary(w io.Writer, report *Report) {
	s := report.Summary
	if report.RunID != "" {
		fmt.Fprintf(w, "Run:        %s\n", report.RunID)
	}
	fmt.Fprintf(w, "Lines:      %d (%d matched, %d unparsed, %d malformed)\n", s.Lines, report.Matched, s.Unparsed, s.Malformed)
	fmt.Fprintf(w, "Applied:    %d\n", s.Applied)
	fmt.Fprintf(w, "Deferred:   %d\n", s.DeferredInitially)
	fmt.Fprintf(w, "Passes:     %d\n", s.Passes)

	keys := make([]string, 0, len(report.Counts))
	for k, n := range report.Counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	slices.SortFunc(keys, compareCensusKeys)
	fmt.Fprintln(w, "Entities:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-24s %d\n", k, report.Counts[k])
	}
}

// compareCensusKeys puts entity classes first in their canonical order,
// then everything else alphabetically.
func compareCensusKeys(a, b string) int {
	ia, ib := entityRank(a), entityRank(b)
	if ia != ib {
		return ia - ib
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func entityRank(key string) int {
	for i, e := range state.Entities() {
		if string(e) == key {
			return i
		}
	}
	return len(state.Entities())
}
