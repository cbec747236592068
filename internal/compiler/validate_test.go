package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	rs := load(t, `
		rule: a: check: { malformed: 0, outcome: "ok" }
		rule: b: check: per_kind: { TopTask: 1, CopyEvents: >=0 }
	`)
	assert.Empty(t, Validate(rs.Rules))
}

func TestValidate_UnknownSummaryField(t *testing.T) {
	rs := load(t, `rule: typo: check: pases: 1`)

	errs := Validate(rs.Rules)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownSummaryField, errs[0].Code)
	assert.Equal(t, "rule.typo.check.pases", errs[0].Field)
	assert.Equal(t, 1, errs[0].Line)
}

func TestValidate_UnknownRecordKind(t *testing.T) {
	rs := load(t, `rule: kinds: check: per_kind: { TopTask: 1, Teleport: 1 }`)

	errs := Validate(rs.Rules)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownRecordKind, errs[0].Code)
	assert.Equal(t, "rule.kinds.check.per_kind.Teleport", errs[0].Field)
}

func TestValidate_EmptyCheck(t *testing.T) {
	rs := load(t, `rule: nothing: check: {}`)

	errs := Validate(rs.Rules)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrEmptyCheck, errs[0].Code)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	rs := load(t, `
		rule: a: check: bogus: 1
		rule: b: check: per_kind: Nope: 1
		rule: c: check: {}
	`)
	assert.Len(t, Validate(rs.Rules), 3)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "rule.a.check.x", Message: "unknown summary field \"x\"", Code: ErrUnknownSummaryField}
	assert.Equal(t, `[E120] rule.a.check.x: unknown summary field "x"`, err.Error())

	err.Line = 4
	assert.Equal(t, `[E120] line 4: rule.a.check.x: unknown summary field "x"`, err.Error())
}
