package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/spy/internal/ir"
)

// Validation error codes (E120-E129)
const (
	ErrUnknownSummaryField = "E120" // check names a field the summary never has
	ErrUnknownRecordKind   = "E121" // per_kind key is not a record kind
	ErrEmptyCheck          = "E122" // check constrains nothing
)

// SummaryFields are the top-level fields of the document rules are
// checked against.
var SummaryFields = []string{
	"outcome",
	"lines",
	"applied",
	"unparsed",
	"malformed",
	"deferred_initially",
	"passes",
	"per_kind",
	"counts",
}

// ValidationError represents a rule that can never match a summary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate reports every rule that names fields a summary cannot carry.
// Returns all errors found (does not fail-fast).
func Validate(rules []Rule) []ValidationError {
	var errs []ValidationError
	for _, rule := range rules {
		errs = append(errs, validateRule(rule)...)
	}
	return errs
}

func validateRule(rule Rule) []ValidationError {
	var errs []ValidationError
	prefix := "rule." + rule.Name + ".check"

	iter, err := rule.Check.Fields()
	if err != nil {
		return []ValidationError{{
			Field:   prefix,
			Message: err.Error(),
			Code:    ErrEmptyCheck,
			Line:    rule.Pos.Line(),
		}}
	}

	n := 0
	for iter.Next() {
		n++
		label := iter.Label()
		line := iter.Value().Pos().Line()

		if !slices.Contains(SummaryFields, label) {
			errs = append(errs, ValidationError{
				Field:   prefix + "." + label,
				Message: fmt.Sprintf("unknown summary field %q", label),
				Code:    ErrUnknownSummaryField,
				Line:    line,
			})
			continue
		}
		if label == "per_kind" {
			errs = append(errs, validatePerKind(prefix+".per_kind", iter.Value())...)
		}
	}

	if n == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix,
			Message: "check constrains nothing",
			Code:    ErrEmptyCheck,
			Line:    rule.Pos.Line(),
		})
	}
	return errs
}

func validatePerKind(field string, v cue.Value) []ValidationError {
	iter, err := v.Fields()
	if err != nil {
		return nil
	}

	var errs []ValidationError
	for iter.Next() {
		if _, err := ir.ParseKind(iter.Label()); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + "." + iter.Label(),
				Message: err.Error(),
				Code:    ErrUnknownRecordKind,
				Line:    iter.Value().Pos().Line(),
			})
		}
	}
	return errs
}
