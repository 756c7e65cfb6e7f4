// =============================================================================
// sheet2sql - Validation Engine
// =============================================================================
//
// This module validates table spec files before any statement is generated.
// It enforces the TableSpec invariants:
//   - Non-empty table name
//   - At least one column
//   - No duplicate destination column names
//   - Every column has a name and a source field
//   - Known value kinds, statement layout, CSV delimiter and encoding
//   - Compilable `where` filter and transforms
//
// It can also check a source's headers against the columns, so a missing
// field is reported before the serializer rejects the first record.
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error names the spec file, the column and the violated rule
//   - Warnings do not make a spec invalid
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/converter"
	"github.com/ginjaninja78/sheet2sql/internal/csvparser"
	"github.com/ginjaninja78/sheet2sql/internal/sqlwriter"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is "error" (spec unusable) or "warning".
	Severity string

	// File is the table spec file.
	File string

	// Table is the destination table name, if known.
	Table string

	// Column is the destination column, empty for table-level findings.
	Column string

	// Rule is the violated rule, e.g. "duplicate_column".
	Rule string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	location := e.File
	if e.Table != "" {
		location = fmt.Sprintf("%s (%s)", location, e.Table)
	}
	if e.Column != "" {
		return fmt.Sprintf("[%s] %s, column '%s': %s", strings.ToUpper(e.Severity), location, e.Column, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), location, e.Message)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	// ErrorCount is the number of errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// TablesValidated is the number of table specs checked.
	TablesValidated int
}

func (r *ValidationResult) add(err *ValidationError) {
	r.Errors = append(r.Errors, err)
	if err.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
	} else {
		r.WarningCount++
	}
}

func (r *ValidationResult) merge(other *ValidationResult) {
	for _, err := range other.Errors {
		r.add(err)
	}
	r.TablesValidated += other.TablesValidated
}

// =============================================================================
// TABLE VALIDATION
// =============================================================================

// ValidateAll validates every table config and checks that no two configs
// target the same table.
func ValidateAll(configs []*config.TableConfig) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	seen := make(map[string]string)

	for _, cfg := range configs {
		result.merge(ValidateTable(cfg))

		name := strings.TrimSpace(cfg.Table)
		if name == "" {
			continue
		}
		if previous, ok := seen[name]; ok {
			result.add(&ValidationError{
				Severity: SeverityWarning,
				File:     cfg.SourceFile,
				Table:    name,
				Rule:     "duplicate_table",
				Message:  fmt.Sprintf("table is also declared in %s", previous),
			})
			continue
		}
		seen[name] = cfg.SourceFile
	}

	return result
}

// ValidateTable validates a single table config.
func ValidateTable(cfg *config.TableConfig) *ValidationResult {
	result := &ValidationResult{IsValid: true, TablesValidated: 1}
	table := strings.TrimSpace(cfg.Table)

	report := func(severity, column, rule, format string, args ...any) {
		result.add(&ValidationError{
			Severity: severity,
			File:     cfg.SourceFile,
			Table:    table,
			Column:   column,
			Rule:     rule,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if table == "" {
		report(SeverityError, "", "table_name", "table name is empty")
	} else if strings.ContainsAny(table, " \t'\";") {
		report(SeverityWarning, "", "table_name", "table name %q is emitted unquoted", table)
	}

	if strings.TrimSpace(cfg.Source) == "" {
		report(SeverityError, "", "source", "source file is not set")
	}

	if len(cfg.Columns) == 0 {
		report(SeverityError, "", "columns", "at least one column is required")
	}

	if _, err := sqlwriter.ParseLayout(cfg.Layout); err != nil {
		report(SeverityError, "", "layout", "%v", err)
	}

	if _, err := converter.CompileFilter(cfg.Where); err != nil {
		report(SeverityError, "", "where", "%v", err)
	}

	if _, err := csvparser.ResolveDelimiter(cfg.CSVSettings.Delimiter); err != nil {
		report(SeverityError, "", "csv_delimiter", "%v", err)
	}
	if _, err := csvparser.LookupEncoding(cfg.CSVSettings.Encoding); err != nil {
		report(SeverityError, "", "csv_encoding", "%v", err)
	}
	if cfg.CSVSettings.DataStartRow <= cfg.CSVSettings.HeaderRows {
		report(SeverityError, "", "csv_data_start_row",
			"data_start_row %d must be after the %d header row(s)",
			cfg.CSVSettings.DataStartRow, cfg.CSVSettings.HeaderRows)
	}

	names := make(map[string]bool)
	transformedFields := make(map[string]string)

	for i, column := range cfg.Columns {
		label := column.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}

		if strings.TrimSpace(column.Name) == "" {
			report(SeverityError, label, "column_name", "column name is empty")
		} else if names[column.Name] {
			report(SeverityError, label, "duplicate_column", "duplicate destination column")
		}
		names[column.Name] = true

		if strings.TrimSpace(column.Field) == "" {
			report(SeverityError, label, "column_field", "source field is empty")
		}

		kind, err := types.ParseValueKind(column.Kind)
		if err != nil {
			report(SeverityError, label, "column_kind", "%v", err)
		}
		if kind == types.KindNumeric && !column.NullOnEmpty {
			for _, action := range column.Transforms {
				if action.Type == "if_empty_use_default" {
					if _, ok := sqlwriter.NumericLiteral(action.Value); !ok {
						report(SeverityWarning, label, "column_default",
							"default %q is not numeric", action.Value)
					}
				}
			}
		}

		if len(column.Transforms) == 0 {
			continue
		}
		if _, err := converter.NewTransformer([]config.ColumnConfig{column}); err != nil {
			report(SeverityError, label, "transform", "%v", err)
		}

		// Transforms rewrite the source field in place.
		if other, ok := transformedFields[column.Field]; ok {
			report(SeverityError, label, "shared_transform_field",
				"field %q is also transformed by column %q", column.Field, other)
		}
		transformedFields[column.Field] = label
	}

	return result
}

// =============================================================================
// SOURCE VALIDATION
// =============================================================================

// ValidateHeaders checks that every field referenced by the spec exists in
// the source headers. Missing fields are errors; unused headers are not
// reported.
func ValidateHeaders(spec types.TableSpec, file string, headers []string) *ValidationResult {
	result := &ValidationResult{IsValid: true, TablesValidated: 1}

	available := make(map[string]bool, len(headers))
	for _, header := range headers {
		available[header] = true
	}

	for _, column := range spec.Columns {
		if available[column.Field] {
			continue
		}
		result.add(&ValidationError{
			Severity: SeverityError,
			File:     file,
			Table:    spec.Table,
			Column:   column.Name,
			Rule:     "missing_field",
			Message:  fmt.Sprintf("source has no field %q", column.Field),
		})
	}

	return result
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
