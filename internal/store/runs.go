package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/spy/internal/engine"
	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunStalled RunStatus = "stalled"
	RunFailed  RunStatus = "failed"
)

// Summary holds the counters of a finished run.
type Summary struct {
	Lines             int            `json:"lines"`
	Applied           int            `json:"applied"`
	Unparsed          int            `json:"unparsed"`
	Malformed         int            `json:"malformed"`
	DeferredInitially int            `json:"deferred_initially"`
	Passes            int            `json:"passes"`
	PerKind           map[string]int `json:"per_kind,omitempty"`
}

// SummaryOf converts engine counters into a persisted summary.
func SummaryOf(res *engine.Result) Summary {
	if res == nil {
		return Summary{}
	}
	sum := Summary{
		Lines:             res.Lines,
		Applied:           res.Applied,
		Unparsed:          res.Unparsed,
		Malformed:         res.Malformed,
		DeferredInitially: res.DeferredInitially,
		Passes:            res.Passes,
	}
	if len(res.PerKind) > 0 {
		sum.PerKind = make(map[string]int, len(res.PerKind))
		for k, n := range res.PerKind {
			sum.PerKind[k.String()] = n
		}
	}
	return sum
}

// Run is one persisted replay.
type Run struct {
	ID      string    `json:"id"`
	Seq     int64     `json:"seq"`
	Source  string    `json:"source"`
	Status  RunStatus `json:"status"`
	Summary Summary   `json:"summary"`
	Error   string    `json:"error,omitempty"`
}

// BeginRun registers a new run for the log at source and returns the state
// its records are applied to.
func (s *Store) BeginRun(ctx context.Context, source string) (*RunState, error) {
	id := s.ids.Generate()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("begin run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, source, status)
		VALUES (?, ?, ?, ?)
	`, id, seq, source, string(RunRunning))
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("begin run: commit: %w", err)
	}
	return &RunState{store: s, runID: id}, nil
}

// FinishRun records the outcome of a run. runErr is empty for successful runs.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, sum Summary, runErr string) error {
	sumJSON, err := marshalSummary(sum)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, summary = ?, error = ?
		WHERE id = ?
	`, string(status), sumJSON, runErr, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SaveUnresolved persists the records a stalled run could not apply.
// Saving the same record twice is a no-op.
func (s *Store) SaveUnresolved(ctx context.Context, runID string, recs []ir.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save unresolved: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		id, err := ir.RecordID(rec)
		if err != nil {
			return fmt.Errorf("save unresolved: %w", err)
		}
		data, err := marshalRecord(rec)
		if err != nil {
			return fmt.Errorf("save unresolved: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO unresolved (run_id, record_id, line, kind, record)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(run_id, record_id) DO NOTHING
		`, runID, id, rec.Line, rec.Kind.String(), data)
		if err != nil {
			return fmt.Errorf("save unresolved line %d: %w", rec.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save unresolved: commit: %w", err)
	}
	return nil
}

// ListRuns returns every run in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, status, summary, error
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, source, status, summary, error
		FROM runs
		WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		status  string
		sumJSON string
	)
	if err := sc.Scan(&run.ID, &run.Seq, &run.Source, &status, &sumJSON, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = RunStatus(status)

	sum, err := unmarshalSummary(sumJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Summary = sum
	return run, nil
}

// ListUnresolved returns the unresolved records of a run ordered by line.
func (s *Store) ListUnresolved(ctx context.Context, runID string) ([]ir.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record
		FROM unresolved
		WHERE run_id = ?
		ORDER BY line ASC, record_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query unresolved: %w", err)
	}
	defer rows.Close()

	recs := []ir.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan unresolved: %w", err)
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unresolved: %w", err)
	}
	return recs, nil
}

// Fact is a committed mutation. Seq is its commit position within the run.
type Fact struct {
	Seq    int64     `json:"seq"`
	Kind   ir.Kind   `json:"kind"`
	Fields ir.Fields `json:"fields"`
}

// ListFacts returns the committed mutations of a run in commit order.
func (s *Store) ListFacts(ctx context.Context, runID string) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, fields
		FROM facts
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []Fact{}
	for rows.Next() {
		var (
			f          Fact
			kind       string
			fieldsJSON string
		)
		if err := rows.Scan(&f.Seq, &kind, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if f.Kind, err = ir.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("fact %d: %w", f.Seq, err)
		}
		if f.Fields, err = unmarshalFields(fieldsJSON); err != nil {
			return nil, fmt.Errorf("fact %d: %w", f.Seq, err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// Counts returns the number of declared entities per class and committed
// facts per kind for a run. Entity classes use their reference names
// ("space", "op"); fact kinds use their kind names ("IndexSpace").
func (s *Store) Counts(ctx context.Context, runID string) (map[string]int, error) {
	counts := map[string]int{}
	queries := []string{
		`SELECT entity, COUNT(*) FROM entities WHERE run_id = ? GROUP BY entity`,
		`SELECT kind, COUNT(*) FROM facts WHERE run_id = ? GROUP BY kind`,
	}
	for _, q := range queries {
		if err := s.countInto(ctx, counts, q, runID); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func (s *Store) countInto(ctx context.Context, counts map[string]int, query, runID string) error {
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return fmt.Errorf("scan counts: %w", err)
		}
		counts[name] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate counts: %w", err)
	}
	return nil
}

// Declared reports whether ref exists in the given run.
func (s *Store) Declared(ctx context.Context, runID string, ref state.Ref) (bool, error) {
	return exists(ctx, s.db, runID, ref)
}
