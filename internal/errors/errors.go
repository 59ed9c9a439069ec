// Package errors provides centralized error definitions for the tribunal
// codebase: sentinel errors for structural failures, semantic error types
// for validation and timeouts, and classification helpers that the engine
// uses to decide between aborting a run and degrading a stage.
//
// The error taxonomy mirrors the run lifecycle:
//
//   - Structural errors (bad rubric, no evaluators, closed store) are fatal
//     and abort the run before any stage executes.
//   - Validation errors (malformed evaluator output) are retryable and are
//     eventually replaced by a synthetic fallback opinion.
//   - Timeout errors mark a single stage as failed without aborting the run.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions so callers can import only this
// package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Structural sentinel errors. Any error wrapping one of these aborts the run.
var (
	// ErrRubricEmpty indicates the rubric contains no criteria.
	ErrRubricEmpty = New("rubric has no criteria")
	// ErrDuplicateCriterion indicates two rubric criteria share an id.
	ErrDuplicateCriterion = New("duplicate criterion id in rubric")
	// ErrNoEvaluators indicates no evaluator stages were registered.
	ErrNoEvaluators = New("no evaluators registered")
	// ErrNoAnalyzers indicates no analyzer stages were registered.
	ErrNoAnalyzers = New("no analyzers registered")
	// ErrStoreClosed indicates a merge was attempted after run cancellation.
	ErrStoreClosed = New("state store is closed")
	// ErrDuplicateStage indicates two stages were registered under one id.
	ErrDuplicateStage = New("duplicate stage id")
)

// Stage-level sentinel errors. These degrade a stage, never the run.
var (
	// ErrInvalidOpinion indicates evaluator output failed schema validation.
	ErrInvalidOpinion = New("opinion failed schema validation")
	// ErrStageTimeout indicates a stage exceeded its individual deadline.
	ErrStageTimeout = New("stage exceeded its deadline")
)

// StructuralError is a fatal pre-execution failure: the run cannot produce a
// meaningful report and must abort before any stage executes.
type StructuralError struct {
	Op  string // the operation that failed, e.g. "rubric.Load"
	Err error
}

// NewStructuralError creates a StructuralError wrapping the given cause.
func NewStructuralError(op string, err error) *StructuralError {
	return &StructuralError{Op: op, Err: err}
}

func (e *StructuralError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("structural failure in %s", e.Op)
	}
	return fmt.Sprintf("structural failure in %s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// ValidationError reports input that failed schema or range validation.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s (value %v): %s", e.Field, e.Value, e.Reason)
}

// TimeoutError reports a stage or call that exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

// NewTimeoutError creates a TimeoutError for the given operation.
func NewTimeoutError(op string, timeout time.Duration) *TimeoutError {
	return &TimeoutError{Op: op, Timeout: timeout}
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrStageTimeout }

// IsStructural reports whether err is fatal to the whole run.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}
	var se *StructuralError
	if As(err, &se) {
		return true
	}
	return Is(err, ErrRubricEmpty) ||
		Is(err, ErrDuplicateCriterion) ||
		Is(err, ErrNoEvaluators) ||
		Is(err, ErrNoAnalyzers) ||
		Is(err, ErrDuplicateStage) ||
		Is(err, ErrStoreClosed)
}

// IsRetryable reports whether err may succeed on a further attempt. Only
// schema validation failures from evaluators are retried; structural and
// timeout errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsStructural(err) || Is(err, ErrStageTimeout) {
		return false
	}
	var ve *ValidationError
	return Is(err, ErrInvalidOpinion) || As(err, &ve)
}

// IsTimeout reports whether err represents an exceeded deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	return Is(err, ErrStageTimeout) || As(err, &te)
}
