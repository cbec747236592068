package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
	"github.com/roach88/spy/internal/store"
	"github.com/roach88/spy/internal/testutil"
)

// backend is the state a scenario replays into, plus the census and
// stall bookkeeping the assertions read back.
type backend interface {
	target() state.State
	counts(ctx context.Context) (map[string]int, error)
	finish(ctx context.Context, res *engine.Result, stall *engine.StallError, runErr error) ([]ir.Record, error)
	close() error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh backend for isolation: an in-memory
// graph, or an in-memory SQLite store with a fixed run ID.
//
// Execution flow:
// 1. Build the log from the scenario lines
// 2. Replay it through the engine
// 3. Collect the outcome, counters, stall diagnosis and census
// 4. Evaluate assertions
//
// A stall is an outcome, not an error. Run returns an error only when the
// replay itself fails (contract violation, state failure).
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	be, err := newBackend(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer be.close()

	log := testutil.NewLog()
	for _, line := range scenario.Log {
		if scenario.RawLines {
			log.Raw(line)
		} else {
			log.Add(line)
		}
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	summary, runErr := engine.New(be.target(), engine.WithLogger(quiet)).Run(ctx, log.Reader())

	stall, stalled := engine.AsStallError(runErr)
	if runErr != nil && !stalled {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, runErr)
	}

	result := NewResult()
	result.Summary = summary

	unresolved, err := be.finish(ctx, summary, stall, runErr)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if stalled {
		result.Outcome = OutcomeStall
		result.StallPass = stall.Pass
		result.Unresolved = unresolved
		for _, m := range stall.Diagnosis.Missing {
			result.Missing = append(result.Missing, m.Ref.String())
		}
		result.Cycles = stall.Diagnosis.Cycles
	}

	if result.Counts, err = be.counts(ctx); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s) failed: %v", i, a.Type, err))
		}
	}

	return result, nil
}

func newBackend(ctx context.Context, scenario *Scenario) (backend, error) {
	switch scenario.Backend {
	case BackendSQLite:
		st, err := store.Open(":memory:", store.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		rs, err := st.BeginRun(ctx, scenario.Name)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to begin run: %w", err)
		}
		return &sqliteBackend{store: st, run: rs}, nil
	default:
		return &memoryBackend{graph: state.NewGraph()}, nil
	}
}

type memoryBackend struct {
	graph *state.Graph
}

func (b *memoryBackend) target() state.State { return b.graph }

func (b *memoryBackend) counts(context.Context) (map[string]int, error) {
	return b.graph.Counts(), nil
}

func (b *memoryBackend) finish(_ context.Context, _ *engine.Result, stall *engine.StallError, _ error) ([]ir.Record, error) {
	if stall == nil {
		return nil, nil
	}
	return stall.Unresolved, nil
}

func (b *memoryBackend) close() error { return nil }

// sqliteBackend persists the run so the assertions read back what a real
// "spy parse --db" run would leave in the database.
type sqliteBackend struct {
	store *store.Store
	run   *store.RunState
}

func (b *sqliteBackend) target() state.State { return b.run }

func (b *sqliteBackend) counts(ctx context.Context) (map[string]int, error) {
	return b.store.Counts(ctx, b.run.RunID())
}

func (b *sqliteBackend) finish(ctx context.Context, res *engine.Result, stall *engine.StallError, runErr error) ([]ir.Record, error) {
	status, msg := store.RunOK, ""
	if stall != nil {
		status, msg = store.RunStalled, runErr.Error()
		if err := b.store.SaveUnresolved(ctx, b.run.RunID(), stall.Unresolved); err != nil {
			return nil, err
		}
	}
	if err := b.store.FinishRun(ctx, b.run.RunID(), status, store.SummaryOf(res), msg); err != nil {
		return nil, err
	}
	if stall == nil {
		return nil, nil
	}
	return b.store.ListUnresolved(ctx, b.run.RunID())
}

func (b *sqliteBackend) close() error { return b.store.Close() }
