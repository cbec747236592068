package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spy/internal/ir"
	"github.com/roach88/spy/internal/state"
	"github.com/roach88/spy/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(st state.State, opts ...Option) *Engine {
	return New(st, append([]Option{WithLogger(discardLogger())}, opts...)...)
}

func TestEngine_AffinityScenario(t *testing.T) {
	g := state.NewGraph()
	log := testutil.NewLog(
		"Processor Memory 7 3 100 5",
		"Processor 7 0 1",
		"Memory 3 1024",
	)

	res, err := newTestEngine(g).Run(context.Background(), log.Reader())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Lines)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, 1, res.DeferredInitially)
	assert.Equal(t, 1, res.Passes)

	aff, ok := g.Affinity(7, 3)
	require.True(t, ok)
	assert.Equal(t, state.Affinity{Bandwidth: 100, Latency: 5}, aff)
}

func TestEngine_MissingPartitionStall(t *testing.T) {
	g := state.NewGraph()
	log := testutil.NewLog(
		"Index Space 1",
		"Index Subspace 5 9 0",
	)

	res, err := newTestEngine(g).Run(context.Background(), log.Reader())
	require.Error(t, err)
	assert.True(t, IsStallError(err))

	stall, ok := AsStallError(err)
	require.True(t, ok)
	assert.Equal(t, 1, stall.Pass, "stall is detected on the first pass without progress")
	require.Len(t, stall.Unresolved, 1)
	assert.Equal(t, ir.KindIndexSubspace, stall.Unresolved[0].Kind)
	assert.Equal(t, int64(2), stall.Unresolved[0].Line)
	assert.Equal(t, uint64(5), stall.Unresolved[0].Uint("pid"))

	require.Len(t, stall.Diagnosis.Missing, 1)
	assert.Equal(t, "partition:5", stall.Diagnosis.Missing[0].Ref.String())
	assert.Equal(t, []int64{2}, stall.Diagnosis.Missing[0].Lines)
	assert.Contains(t, err.Error(), "partition:5 never declared")

	require.NotNil(t, res, "partial result is returned with the stall")
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 1, res.DeferredInitially)
	assert.Equal(t, 1, res.Passes)
}

func TestEngine_OrderInvariance(t *testing.T) {
	ctx := context.Background()
	base := testutil.FullLog()

	forward := state.NewGraph()
	res, err := newTestEngine(forward).Run(ctx, base.Reader())
	require.NoError(t, err)
	require.Equal(t, 37, res.Applied)
	for _, k := range ir.Kinds() {
		assert.Positive(t, res.PerKind[k], "kind %s must be exercised", k)
	}

	orders := map[string]*testutil.Log{
		"reversed":  base.Reversed(),
		"shuffle-1": base.Shuffled(1),
		"shuffle-2": base.Shuffled(2),
		"shuffle-3": base.Shuffled(3),
	}
	for name, log := range orders {
		t.Run(name, func(t *testing.T) {
			g := state.NewGraph()
			res, err := newTestEngine(g).Run(ctx, log.Reader())
			require.NoError(t, err)
			assert.Equal(t, 37, res.Applied)
			assert.Equal(t, forward.Snapshot(), g.Snapshot())
		})
	}
}

func TestEngine_UnconditionalNeverDeferred(t *testing.T) {
	log := testutil.NewLog(
		"Event Event 1 1 2 1",
		"Implicit Event 2 1 3 1",
		"Top Task 0 1 main",
		"Field Space 10",
		"Index Space 1",
		"Memory 3 1024",
		"Processor 7 0 1",
		"Utility 7",
	)
	rs := &testutil.RecordingState{}

	res, err := newTestEngine(rs).Run(context.Background(), log.Reader())
	require.NoError(t, err)
	assert.Equal(t, 0, res.DeferredInitially)
	assert.Equal(t, 0, res.Passes)
	assert.Equal(t, 8, res.Applied)
	assert.Equal(t, []string{
		"AddEventDependence", "AddImplicitDependence", "AddTopTask", "AddFieldSpace",
		"AddIndexSpace", "AddMemory", "AddProcessor", "AddUtility",
	}, rs.Methods(), "each unconditional record is dispatched exactly once")
}

func TestEngine_ContractViolation(t *testing.T) {
	rs := &testutil.RecordingState{
		Verdict: func(testutil.Call) (bool, error) { return false, nil },
	}
	log := testutil.NewLog("Processor 1 0 0")

	_, err := newTestEngine(rs).Run(context.Background(), log.Reader())
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))
	assert.False(t, IsStallError(err))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	require.NotNil(t, re.Record)
	assert.Equal(t, ir.KindProcessor, re.Record.Kind)
}

func TestEngine_StateFailureAborts(t *testing.T) {
	boom := errors.New("disk on fire")
	rs := &testutil.RecordingState{
		Verdict: func(c testutil.Call) (bool, error) {
			if c.Method == "AddMemory" {
				return false, boom
			}
			return true, nil
		},
	}
	log := testutil.NewLog("Processor 1 0 0", "Memory 2 64", "Memory 3 64")

	res, err := newTestEngine(rs).Run(context.Background(), log.Reader())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeStateFailure, re.Code)
	assert.Equal(t, 1, res.Applied)
	assert.Len(t, rs.Calls, 2, "the run stops at the failing call")
}

func TestEngine_UnparsedAndMalformedLines(t *testing.T) {
	log := testutil.NewLog("Index Space 1").
		Raw("some unrelated runtime output").
		Add("Index Space 18446744073709551616").
		Raw("").
		Add("Field Space 2")

	res, err := newTestEngine(state.NewGraph()).Run(context.Background(), log.Reader())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Lines)
	assert.Equal(t, 2, res.Unparsed)
	assert.Equal(t, 1, res.Malformed)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, 2, res.Matched())
}

func TestEngine_LineNumbersFollowInput(t *testing.T) {
	log := testutil.NewLog().
		Raw("noise").
		Raw("noise").
		Add("Index Subspace 8 9 0")

	_, err := newTestEngine(state.NewGraph()).Run(context.Background(), log.Reader())
	stall, ok := AsStallError(err)
	require.True(t, ok)
	assert.Equal(t, int64(3), stall.Unresolved[0].Line)
}

func TestEngine_OversizedLineIsUnparsed(t *testing.T) {
	long := testutil.SpyLine("Index Space 1" + strings.Repeat(" ", 200))
	log := testutil.NewLog("Index Space 2").
		Raw(long).
		Add("Index Partition 2 3 1 0")
	e := newTestEngine(state.NewGraph(), WithMaxLineBytes(64))

	res, err := e.Run(context.Background(), log.Reader())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Lines)
	assert.Equal(t, 1, res.Unparsed)
	assert.Equal(t, 2, res.Applied, "lines after the oversized one still apply")
}

func TestEngine_ReadErrorIsInput(t *testing.T) {
	r := io.MultiReader(strings.NewReader(testutil.SpyLine("Index Space 1")+"\n"), iotest.ErrReader(errors.New("disk gone")))

	res, err := newTestEngine(state.NewGraph()).Run(context.Background(), r)
	require.Error(t, err)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeInput, re.Code)
	assert.Equal(t, 1, res.Applied)
}

// A name followed by template punctuation still declares its operation,
// so records that depend on it resolve.
func TestEngine_TrailingTextStillDeclares(t *testing.T) {
	g := state.NewGraph()
	log := testutil.NewLog(
		"Top Task 0 1 main",
		"Individual Task 1 5 2 foo::bar<int>",
		"Mapping Operation 2 3",
	)

	res, err := newTestEngine(g).Run(context.Background(), log.Reader())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Unparsed)
	assert.Equal(t, 3, res.Applied)
	assert.True(t, g.Has(state.Ref{Entity: state.EntityOp, ID: "2"}))
}

func TestEngine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine(state.NewGraph()).Run(ctx, testutil.FullLog().Reader())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_EmptyLog(t *testing.T) {
	res, err := newTestEngine(state.NewGraph()).Run(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Lines)
	assert.Equal(t, 0, res.Passes)
}

func TestEngine_PassObserverWiring(t *testing.T) {
	var passes []PassStats
	e := newTestEngine(state.NewGraph(), WithPassObserver(func(p PassStats) {
		passes = append(passes, p)
	}))

	_, err := e.Run(context.Background(), testutil.FullLog().Reversed().Reader())
	require.NoError(t, err)
	require.NotEmpty(t, passes)
	assert.Equal(t, 0, passes[len(passes)-1].Remaining)
}
