// =============================================================================
// sheet2sql - Shared Types
// =============================================================================
//
// This package contains the types shared by the parsers, the converter and
// the SQL writer. Keeping them here avoids import cycles between:
//   - csvparser / xlsxparser (produce Records)
//   - sqlwriter              (consumes TableSpec + Records)
//   - converter              (glues the two together)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// VALUE KINDS
// =============================================================================

// ValueKind tells the serializer how a column value is rendered.
type ValueKind string

const (
	// KindText values are wrapped in single quotes.
	KindText ValueKind = "text"

	// KindNumeric values are emitted as bare numeric literals.
	KindNumeric ValueKind = "numeric"
)

// ParseValueKind normalizes the kind names accepted in table spec files.
// An empty string defaults to text.
func ParseValueKind(value string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "text", "string", "str", "varchar", "char", "date", "timestamp":
		return KindText, nil
	case "numeric", "number", "num", "int", "integer", "bigint", "decimal", "float", "double", "real":
		return KindNumeric, nil
	default:
		return "", fmt.Errorf("unknown value kind %q", value)
	}
}

// =============================================================================
// TABLE SPEC
// =============================================================================

// Column maps one destination column to a source field.
type Column struct {
	// Name is the destination column name, emitted double-quoted.
	Name string

	// Field is the source field (header) the value is read from.
	Field string

	// Kind selects text or numeric rendering.
	Kind ValueKind

	// NullOnEmpty renders NULL for empty or nil values.
	NullOnEmpty bool
}

// TableSpec declares the destination table and its ordered columns.
// Column order must match the destination table's declared column order.
type TableSpec struct {
	// Table is the target table name, emitted as-is.
	Table string

	// Label is the banner comment text. Defaults to Table.
	Label string

	// Columns in destination order.
	Columns []Column
}

// BannerLabel returns the label used for the "-- <label>" banner line.
func (s TableSpec) BannerLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Table
}

// ColumnNames returns the destination column names in order.
func (s TableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks the structural invariants of the spec: a table name, at
// least one column, unique non-empty column names and a known kind for
// every column.
func (s TableSpec) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return &InvalidSpecError{Reason: "table name is empty"}
	}
	if len(s.Columns) == 0 {
		return &InvalidSpecError{Table: s.Table, Reason: "no columns"}
	}

	seen := make(map[string]bool, len(s.Columns))
	for i, name := range s.ColumnNames() {
		if strings.TrimSpace(name) == "" {
			return &InvalidSpecError{Table: s.Table, Reason: fmt.Sprintf("column #%d has no name", i+1)}
		}
		if seen[name] {
			return &InvalidSpecError{Table: s.Table, Reason: fmt.Sprintf("duplicate column %q", name)}
		}
		seen[name] = true

		if kind := s.Columns[i].Kind; kind != KindText && kind != KindNumeric {
			return &InvalidSpecError{Table: s.Table, Reason: fmt.Sprintf("column %q: unknown kind %q", name, kind)}
		}
	}

	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is one row of tabular input keyed by source field name.
// Values are raw scalars: string, integer, float, decimal or nil.
type Record map[string]any
