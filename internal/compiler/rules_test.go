package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// summary mirrors the document the CLI checks: engine counters plus outcome.
func summary() map[string]any {
	return map[string]any{
		"outcome":            "ok",
		"lines":              40,
		"applied":            37,
		"unparsed":           2,
		"malformed":          1,
		"deferred_initially": 12,
		"passes":             3,
		"per_kind":           map[string]int{"TopTask": 1, "IndividualTask": 2},
		"counts":             map[string]int{"op": 3, "space": 4},
	}
}

func load(t *testing.T, src string) *RuleSet {
	t.Helper()
	rs, err := LoadRules("rules.cue", []byte(src))
	require.NoError(t, err)
	return rs
}

func TestLoadRules_Basic(t *testing.T) {
	rs := load(t, `
		rule: clean: {
			description: "every recognized line parses"
			check: malformed: 0
		}
		rule: quick: check: passes: <=3
	`)

	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "clean", rs.Rules[0].Name)
	assert.Equal(t, "every recognized line parses", rs.Rules[0].Description)
	assert.Equal(t, "quick", rs.Rules[1].Name)
	assert.Empty(t, rs.Rules[1].Description)
	assert.True(t, rs.Rules[0].Pos.IsValid())
}

func TestLoadRules_InvalidCUESyntax(t *testing.T) {
	_, err := LoadRules("rules.cue", []byte(`rule: { this is not valid CUE`))
	require.Error(t, err)
}

func TestLoadRules_MissingRuleStruct(t *testing.T) {
	_, err := LoadRules("rules.cue", []byte(`other: 1`))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rule", ce.Field)
}

func TestCompileRules_MissingCheck(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`rule: lonely: description: "no check"`)
	require.NoError(t, v.Err())

	_, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rule.lonely.check", ce.Field)
	assert.Equal(t, "check is required", ce.Message)
}

func TestCompileRules_CheckMustBeStruct(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`rule: odd: check: 3`)
	require.NoError(t, v.Err())

	_, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check must be a struct")
}

func TestCompileRules_DescriptionMustBeString(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`rule: odd: { description: 12, check: passes: 1 }`)
	require.NoError(t, v.Err())

	_, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description must be a string")
}

func TestCompileRules_Empty(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`rule: {}`)
	require.NoError(t, v.Err())

	_, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one rule is required")
}

func TestCheck_Satisfied(t *testing.T) {
	rs := load(t, `
		rule: finished: check: outcome: "ok"
		rule: bounded: check: passes: <=3
		rule: has_top: check: per_kind: TopTask: >=1
		rule: ops: check: counts: op: 3
	`)

	violations, err := rs.Check(summary())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheck_ConflictingValue(t *testing.T) {
	rs := load(t, `
		rule: clean: {
			description: "every recognized line parses"
			check: malformed: 0
		}
	`)

	violations, err := rs.Check(summary())
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "clean", violations[0].Rule)
	assert.Equal(t, "every recognized line parses", violations[0].Description)
	assert.NotEmpty(t, violations[0].Message)
	assert.Contains(t, violations[0].Error(), "rule clean:")
}

func TestCheck_OutOfBound(t *testing.T) {
	rs := load(t, `rule: quick: check: passes: <=1`)

	violations, err := rs.Check(summary())
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "quick", violations[0].Rule)
}

func TestCheck_MissingFieldIsViolation(t *testing.T) {
	rs := load(t, `rule: copies: check: per_kind: CopyOp: >=1`)

	violations, err := rs.Check(summary())
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "summary has no field per_kind.CopyOp", violations[0].Message)
}

func TestCheck_AllRulesEvaluated(t *testing.T) {
	rs := load(t, `
		rule: a: check: malformed: 0
		rule: b: check: applied: 37
		rule: c: check: unparsed: 0
	`)

	violations, err := rs.Check(summary())
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, "a", violations[0].Rule)
	assert.Equal(t, "c", violations[1].Rule)
}

func TestCheck_SummaryMustEncode(t *testing.T) {
	rs := load(t, `rule: a: check: passes: 1`)
	_, err := rs.Check(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "rule", Message: "at least one rule is required"}
	assert.Equal(t, "rule: at least one rule is required", err.Error())
}
