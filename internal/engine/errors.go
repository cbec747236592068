package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/spy/internal/ir"
)

// RuntimeError represents an error detected while driving the state.
//
// Runtime errors include:
//   - Stall: a replay pass over a non-empty deferred set resolved nothing
//   - Contract violation: the state refused an unconditional record
//   - State failure: the state itself failed (I/O, closed database)
//
// Deferral is not an error and never produces a RuntimeError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Record is the record being applied when the error occurred, if any.
	Record *ir.Record

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStall indicates replay stopped making progress.
	ErrCodeStall RuntimeErrorCode = "STALL"

	// ErrCodeContractViolation indicates an unconditional record was refused.
	ErrCodeContractViolation RuntimeErrorCode = "CONTRACT_VIOLATION"

	// ErrCodeStateFailure indicates the state returned an error.
	ErrCodeStateFailure RuntimeErrorCode = "STATE_FAILURE"

	// ErrCodeUnknownKind indicates a record with no dispatch case.
	ErrCodeUnknownKind RuntimeErrorCode = "UNKNOWN_KIND"

	// ErrCodeInput indicates the log could not be read.
	ErrCodeInput RuntimeErrorCode = "INPUT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Record != nil {
		msg += fmt.Sprintf(" (%s)", e.Record)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// StallError is the fatal outcome of a replay pass that resolved nothing.
// It carries every unresolved record so the caller can dump them.
type StallError struct {
	// Pass is the 1-based replay pass that made no progress.
	Pass int

	// Unresolved holds the records still deferred, in first-scan order.
	Unresolved []ir.Record

	// Diagnosis explains what the unresolved records are waiting for.
	Diagnosis Diagnosis
}

// Error implements the error interface.
func (e *StallError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: no progress in replay pass %d, %d record(s) unresolved", ErrCodeStall, e.Pass, len(e.Unresolved))
	for _, hint := range e.Diagnosis.Hints() {
		sb.WriteString("; ")
		sb.WriteString(hint)
	}
	return sb.String()
}

// IsStallError returns true if the error is a replay stall.
// Matches both *StallError and RuntimeError with ErrCodeStall.
// Uses errors.As to handle wrapped errors.
func IsStallError(err error) bool {
	var se *StallError
	if errors.As(err, &se) {
		return true
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStall
	}
	return false
}

// IsContractViolation returns true if the state refused an unconditional record.
func IsContractViolation(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeContractViolation
	}
	return false
}

// AsStallError extracts the *StallError from err, if present.
func AsStallError(err error) (*StallError, bool) {
	var se *StallError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// NewContractViolation creates a RuntimeError for a refused unconditional record.
func NewContractViolation(rec ir.Record) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeContractViolation,
		Message: fmt.Sprintf("state refused unconditional %s record", rec.Kind),
		Record:  &rec,
	}
}

// NewStateFailure wraps an error returned by the state.
func NewStateFailure(rec ir.Record, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStateFailure,
		Message: "state mutation failed",
		Record:  &rec,
		Err:     err,
	}
}

func newStallError(pass int, unresolved []ir.Record, diag Diagnosis) *StallError {
	return &StallError{
		Pass:       pass,
		Unresolved: unresolved,
		Diagnosis:  diag,
	}
}
