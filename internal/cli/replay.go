package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
	"github.com/roach88/spy/internal/store"
)

// Report is the outcome of replaying one log.
type Report struct {
	Source  string         `json:"source"`
	RunID   string         `json:"run_id,omitempty"`
	Outcome string         `json:"outcome"` // "ok" | "stall"
	Matched int            `json:"matched"`
	Summary *engine.Result `json:"summary"`
	Counts  map[string]int `json:"counts"`

	StallPass  int               `json:"stall_pass,omitempty"`
	Unresolved []ir.Record       `json:"unresolved,omitempty"`
	Diagnosis  *engine.Diagnosis `json:"diagnosis,omitempty"`
}

// Stalled reports whether the replay stopped without reaching a fixpoint.
func (r *Report) Stalled() bool {
	return r.Outcome == "stall"
}

// replayOptions selects where a replay reads from and writes to.
type replayOptions struct {
	Path         string // log file, "-" for stdin
	DBPath       string // empty for in-memory state
	MaxLineBytes int
	Logger       *slog.Logger
	Observer     engine.PassObserver
}

// replayLog runs the engine over one log. A stall is reported through
// Report, not as an error. Errors carry ExitError codes: unreadable input
// and unusable databases are command errors, engine failures are failures.
func replayLog(ctx context.Context, in io.Reader, opts replayOptions) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if in == nil {
		f, err := os.Open(opts.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot open log", err)
		}
		defer f.Close()
		in = f
	}

	engineOpts := []engine.Option{engine.WithLogger(log)}
	if opts.MaxLineBytes > 0 {
		engineOpts = append(engineOpts, engine.WithMaxLineBytes(opts.MaxLineBytes))
	}
	if opts.Observer != nil {
		engineOpts = append(engineOpts, engine.WithPassObserver(opts.Observer))
	}

	if opts.DBPath == "" {
		graph := state.NewGraph()
		report, err := runEngine(ctx, graph, in, opts.Path, engineOpts)
		if err != nil {
			return nil, err
		}
		report.Counts = graph.Counts()
		return report, nil
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	rs, err := st.BeginRun(ctx, opts.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to begin run", err)
	}
	log.Info("run started", "run_id", rs.RunID(), "db", opts.DBPath)

	report, runErr := runEngine(ctx, rs, in, opts.Path, engineOpts)
	if err := persist(ctx, st, rs.RunID(), report, runErr); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to record run", err)
	}
	if runErr != nil {
		return nil, runErr
	}

	report.RunID = rs.RunID()
	if report.Counts, err = st.Counts(ctx, rs.RunID()); err != nil {
		return nil, WrapExitError(ExitFailure, "failed to count entities", err)
	}
	return report, nil
}

// runEngine drives one replay and folds a stall into the report.
func runEngine(ctx context.Context, st state.State, in io.Reader, source string, opts []engine.Option) (*Report, error) {
	res, err := engine.New(st, opts...).Run(ctx, in)
	report := &Report{
		Source:  source,
		Outcome: "ok",
		Summary: res,
	}
	if res != nil {
		report.Matched = res.Matched()
	}
	if err == nil {
		return report, nil
	}

	stall, ok := engine.AsStallError(err)
	if !ok {
		var re *engine.RuntimeError
		if errors.As(err, &re) && re.Code == engine.ErrCodeInput {
			return report, WrapExitError(ExitCommandError, "cannot read log", err)
		}
		return report, WrapExitError(ExitFailure, "replay failed", err)
	}

	report.Outcome = "stall"
	report.StallPass = stall.Pass
	report.Unresolved = stall.Unresolved
	report.Diagnosis = &stall.Diagnosis
	return report, nil
}

// persist records the run outcome. A failed replay is still recorded.
func persist(ctx context.Context, st *store.Store, runID string, report *Report, runErr error) error {
	var summary *engine.Result
	if report != nil {
		summary = report.Summary
	}

	status, msg := store.RunOK, ""
	switch {
	case runErr != nil:
		status, msg = store.RunFailed, runErr.Error()
	case report.Stalled():
		status = store.RunStalled
		msg = fmt.Sprintf("stalled in replay pass %d with %d unresolved record(s)", report.StallPass, len(report.Unresolved))
		if err := st.SaveUnresolved(ctx, runID, report.Unresolved); err != nil {
			return err
		}
	}
	return st.FinishRun(ctx, runID, status, store.SummaryOf(summary), msg)
}
