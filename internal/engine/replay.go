package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
)

// PassStats describes one replay pass.
type PassStats struct {
	Pass      int `json:"pass"`
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Remaining int `json:"remaining"`
}

// PassObserver is called after every replay pass.
type PassObserver func(PassStats)

// ReplayStats summarizes a whole replay.
type ReplayStats struct {
	Passes   int
	Resolved int
	PerKind  map[ir.Kind]int
}

// Replay retries deferred records until none remain or a pass resolves
// nothing.
//
// Each pass dispatches every record of the current set exactly once, in
// first-scan order, and collects the ones still not ready into a fresh set
// for the next pass. A pass over a non-empty set that resolves nothing
// returns a *StallError holding the remaining records: since the state is
// monotonic and nothing changed, no further pass could succeed.
//
// obs may be nil. The input slice is not modified.
func Replay(ctx context.Context, st state.State, deferred []ir.Record, obs PassObserver) (ReplayStats, error) {
	return replay(ctx, st, deferred, obs, slog.Default())
}

func replay(ctx context.Context, st state.State, deferred []ir.Record, obs PassObserver, log *slog.Logger) (ReplayStats, error) {
	stats := ReplayStats{PerKind: make(map[ir.Kind]int)}
	current := deferred

	for len(current) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Passes++

		next := make([]ir.Record, 0, len(current))
		resolved := 0
		for _, rec := range current {
			ok, err := Dispatch(ctx, st, rec)
			if err != nil {
				return stats, err
			}
			if ok {
				resolved++
				stats.PerKind[rec.Kind]++
				continue
			}
			next = append(next, rec)
		}
		stats.Resolved += resolved

		pass := PassStats{
			Pass:      stats.Passes,
			Attempted: len(current),
			Resolved:  resolved,
			Remaining: len(next),
		}
		log.Debug("replay pass",
			"pass", pass.Pass,
			"attempted", pass.Attempted,
			"resolved", pass.Resolved,
			"remaining", pass.Remaining,
		)
		if obs != nil {
			obs(pass)
		}

		if resolved == 0 {
			checker, _ := st.(RefChecker)
			diag := Diagnose(next, checker)
			log.Error("replay stalled",
				"pass", pass.Pass,
				"unresolved", len(next),
			)
			return stats, newStallError(pass.Pass, next, diag)
		}
		current = next
	}
	return stats, nil
}
