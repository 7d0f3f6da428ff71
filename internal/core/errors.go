package core

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input to a core function. It is always
// raised before any store call is issued.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid builds a ValidationError for field wrapping one of the sentinel
// errors of this package.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Err.Error()
	}
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError wraps any failure of the external store. The core never looks
// past it; it only propagates it.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// FailedWrite is one write of a composite operation that did not apply.
type FailedWrite struct {
	ID  string
	Err error
}

// PartialApplicationError reports a composite operation in which some but
// not all writes succeeded. IDs are store ids when known; for creates that
// failed they are the position of the record in the request ("#3").
type PartialApplicationError struct {
	Op          string
	Succeeded   []string
	Failed      []FailedWrite
	Compensated []string
}

func (e *PartialApplicationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s partially applied: %d succeeded, %d failed",
		e.Op, len(e.Succeeded), len(e.Failed))
	if len(e.Compensated) > 0 {
		fmt.Fprintf(&b, ", %d compensated", len(e.Compensated))
	}
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, " (first failure: %v)", e.Failed[0].Err)
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialApplicationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// FailedIDs lists the ids of the writes that did not apply.
func (e *PartialApplicationError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}
