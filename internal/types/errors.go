// =============================================================================
// sheet2sql - Error Types
// =============================================================================
//
// Typed errors raised while reading sources and rendering statements.
// Callers inspect them with errors.As:
//   - SourceUnavailableError: the input file cannot be opened
//   - InvalidSpecError:       the TableSpec breaks a structural invariant
//   - MissingFieldError:      a record lacks a referenced field
//   - MalformedValueError:    a numeric column holds a non-numeric value
//
// =============================================================================

package types

import "fmt"

// SourceUnavailableError reports an input file that is missing or unreadable.
type SourceUnavailableError struct {
	Path string
	Err  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.Path, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// InvalidSpecError reports a TableSpec that cannot be serialized.
type InvalidSpecError struct {
	Table  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	if e.Table == "" {
		return "invalid table spec: " + e.Reason
	}
	return fmt.Sprintf("invalid table spec %s: %s", e.Table, e.Reason)
}

// MissingFieldError reports a record lacking a field referenced by the TableSpec.
// Index is the zero-based record index.
type MissingFieldError struct {
	Field string
	Index int
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record %d: missing field %q", e.Index, e.Field)
}

// MalformedValueError reports a numeric column holding a non-numeric value.
type MalformedValueError struct {
	Field string
	Index int
	Value string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("record %d: field %q: value %q is not numeric", e.Index, e.Field, e.Value)
}
