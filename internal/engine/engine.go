package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/spy/internal/grammar"
	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// DefaultMaxLineBytes bounds the length of a single log line.
const DefaultMaxLineBytes = 1 << 20

// Engine reads a trace log and replays it into a State.
//
// Run makes one scan over the log, applying every record that is ready and
// deferring the rest, then hands the deferred set to the replay driver.
//
// An Engine is not safe for concurrent use; the state it drives is assumed
// to be single-threaded as well.
type Engine struct {
	state        state.State
	log          *slog.Logger
	observer     PassObserver
	maxLineBytes int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithPassObserver registers a callback invoked after every replay pass.
func WithPassObserver(obs PassObserver) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// WithMaxLineBytes bounds the longest accepted line. Longer lines are
// skipped and counted as unparsed.
//
// Default: 1 MiB (DefaultMaxLineBytes). Values <= 0 keep the default.
func WithMaxLineBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLineBytes = n
		}
	}
}

// New creates an Engine that drives st.
func New(st state.State, opts ...Option) *Engine {
	e := &Engine{
		state:        st,
		log:          slog.Default(),
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result summarizes one run.
type Result struct {
	// Lines is the number of lines read.
	Lines int `json:"lines"`

	// Applied is the number of records that committed, in the first scan
	// or during replay.
	Applied int `json:"applied"`

	// Unparsed is the number of lines that matched no grammar.
	Unparsed int `json:"unparsed"`

	// Malformed is the number of lines that matched a grammar but carried
	// an unrepresentable value.
	Malformed int `json:"malformed"`

	// DeferredInitially is the size of the deferred set after the first scan.
	DeferredInitially int `json:"deferred_initially"`

	// Passes is the number of replay passes run.
	Passes int `json:"passes"`

	// PerKind counts applied records per kind.
	PerKind map[ir.Kind]int `json:"per_kind"`
}

// Matched returns the number of lines some grammar accepted.
func (r *Result) Matched() int {
	return r.Lines - r.Unparsed - r.Malformed
}

// Run scans the log and replays deferred records to a fixpoint.
//
// On success the returned error is nil. On a stall it returns the partial
// Result together with a *StallError. Any other error (state failure,
// contract violation, read error, cancellation) aborts the run.
func (e *Engine) Run(ctx context.Context, r io.Reader) (*Result, error) {
	res := &Result{PerKind: make(map[ir.Kind]int)}

	lines := newLineReader(r, e.maxLineBytes)

	var deferred []ir.Record
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		text, tooLong, err := lines.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, &RuntimeError{
				Code:    ErrCodeInput,
				Message: fmt.Sprintf("read log after line %d", res.Lines),
				Err:     err,
			}
		}
		res.Lines++
		if tooLong {
			res.Unparsed++
			e.log.Warn("skipping oversized line", "line", res.Lines, "limit", e.maxLineBytes)
			continue
		}

		rec, err := grammar.Classify(text)
		switch {
		case errors.Is(err, grammar.ErrNoMatch):
			res.Unparsed++
			e.log.Debug("skipping unmatched line", "line", res.Lines, "text", text)
			continue
		case err != nil:
			res.Malformed++
			e.log.Warn("skipping malformed line", "line", res.Lines, "error", err)
			continue
		}
		rec.Line = int64(res.Lines)

		ok, err := Dispatch(ctx, e.state, rec)
		if err != nil {
			return res, err
		}
		if !ok {
			deferred = append(deferred, rec)
			continue
		}
		res.Applied++
		res.PerKind[rec.Kind]++
	}

	res.DeferredInitially = len(deferred)
	e.log.Info("first scan complete",
		"lines", res.Lines,
		"applied", res.Applied,
		"unparsed", res.Unparsed,
		"malformed", res.Malformed,
		"deferred", res.DeferredInitially,
	)

	stats, err := replay(ctx, e.state, deferred, e.observer, e.log)
	res.Passes = stats.Passes
	res.Applied += stats.Resolved
	for k, n := range stats.PerKind {
		res.PerKind[k] += n
	}
	if err != nil {
		return res, err
	}

	e.log.Info("replay complete", "passes", res.Passes, "applied", res.Applied)
	return res, nil
}

