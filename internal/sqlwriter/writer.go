// =============================================================================
// sheet2sql - SQL Writer Module
// =============================================================================
//
// This module turns records into literal SQL INSERT statements. It is the
// only place where values are rendered into SQL text.
//
// STATEMENT SHAPE (expanded layout, the default):
//
//   INSERT INTO thickness_measurement ("機器ID", "測定値(mm)") VALUES (
//       'P-101', 8.2
//   );
//
// STATEMENT SHAPE (compact layout):
//
//   INSERT INTO thickness_measurement ("機器ID", "測定値(mm)") VALUES ('P-101', 8.2);
//
// VALUE RENDERING:
//   - text    : wrapped in single quotes. Embedded quotes are NOT escaped
//               unless EscapeQuotes is set on the serializer.
//   - numeric : emitted as a bare literal; non-numeric input is rejected
//               with a MalformedValueError.
//   - NULL    : only for columns with NullOnEmpty and an empty/nil value.
//
// DOCUMENT STRUCTURE:
//
//   -- <preamble line>            (optional)
//
//   -- <table label>
//   INSERT ...;
//   INSERT ...;
//
//   -- <next table label>
//   INSERT ...;
//
// =============================================================================

package sqlwriter

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// SERIALIZER OPTIONS
// =============================================================================

// Layout selects how a statement is laid out.
type Layout string

const (
	// LayoutExpanded puts the VALUES tuple on its own indented line.
	LayoutExpanded Layout = "expanded"

	// LayoutCompact emits each statement on a single line.
	LayoutCompact Layout = "compact"
)

// ParseLayout accepts "", "expanded" and "compact".
func ParseLayout(value string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(LayoutExpanded):
		return LayoutExpanded, nil
	case string(LayoutCompact):
		return LayoutCompact, nil
	default:
		return "", fmt.Errorf("unknown statement layout %q", value)
	}
}

// Options controls rendering.
type Options struct {
	// EscapeQuotes doubles single quotes inside text values.
	// Default: false (values are embedded as-is).
	EscapeQuotes bool

	// Layout is the statement layout.
	// Default: LayoutExpanded
	Layout Layout

	// Indent prefixes the VALUES line in the expanded layout.
	// Default: four spaces
	Indent string
}

// DefaultOptions returns the options used by Serialize.
func DefaultOptions() Options {
	return Options{
		EscapeQuotes: false,
		Layout:       LayoutExpanded,
		Indent:       "    ",
	}
}

// Serializer renders records of one TableSpec into INSERT statements.
type Serializer struct {
	options Options
}

// NewSerializer creates a serializer, filling unset options with defaults.
func NewSerializer(options Options) *Serializer {
	if options.Layout == "" {
		options.Layout = LayoutExpanded
	}
	if options.Indent == "" {
		options.Indent = "    "
	}
	return &Serializer{options: options}
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders one statement per record using the default options.
func Serialize(spec types.TableSpec, records []types.Record) ([]string, error) {
	return NewSerializer(DefaultOptions()).Serialize(spec, records)
}

// Serialize renders one statement per record, in input order.
//
// RETURNS:
//   - One statement per record, each terminated by a newline.
//   - A *types.InvalidSpecError if the spec breaks an invariant, or a
//     *types.MissingFieldError or *types.MalformedValueError for the first
//     offending record. No statements are returned in either case.
func (s *Serializer) Serialize(spec types.TableSpec, records []types.Record) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	statements := make([]string, 0, len(records))
	prefix := s.statementPrefix(spec)

	for index, record := range records {
		values, err := s.renderValues(spec, record, index)
		if err != nil {
			return nil, err
		}
		statements = append(statements, s.assemble(prefix, values))
	}

	return statements, nil
}

// statementPrefix builds the `INSERT INTO t ("a", "b") VALUES (` part shared by every row.
func (s *Serializer) statementPrefix(spec types.TableSpec) string {
	quoted := make([]string, len(spec.Columns))
	for i, column := range spec.Columns {
		quoted[i] = QuoteIdentifier(column.Name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (", spec.Table, strings.Join(quoted, ", "))
}

func (s *Serializer) assemble(prefix string, values []string) string {
	tuple := strings.Join(values, ", ")
	if s.options.Layout == LayoutCompact {
		return prefix + tuple + ");\n"
	}
	return prefix + "\n" + s.options.Indent + tuple + "\n);\n"
}

// renderValues renders every column of one record in column order.
func (s *Serializer) renderValues(spec types.TableSpec, record types.Record, index int) ([]string, error) {
	values := make([]string, len(spec.Columns))

	for i, column := range spec.Columns {
		raw, ok := record[column.Field]
		if !ok {
			return nil, &types.MissingFieldError{Field: column.Field, Index: index}
		}

		if column.NullOnEmpty && isEmpty(raw) {
			values[i] = "NULL"
			continue
		}

		switch column.Kind {
		case types.KindNumeric:
			literal, ok := NumericLiteral(raw)
			if !ok {
				return nil, &types.MalformedValueError{
					Field: column.Field,
					Index: index,
					Value: cast.ToString(raw),
				}
			}
			values[i] = literal
		case types.KindText:
			values[i] = s.textLiteral(raw)
		default:
			return nil, &types.InvalidSpecError{
				Table:  spec.Table,
				Reason: fmt.Sprintf("column %q: unknown kind %q", column.Name, column.Kind),
			}
		}
	}

	return values, nil
}

func (s *Serializer) textLiteral(raw any) string {
	value := cast.ToString(raw)
	if s.options.EscapeQuotes {
		value = strings.ReplaceAll(value, "'", "''")
	}
	return "'" + value + "'"
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

// NumericLiteral returns the SQL literal for a numeric value.
// Strings are trimmed and must parse as a finite decimal number; the
// trimmed token is returned unchanged so "12.50" stays "12.50".
func NumericLiteral(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case bool:
		return "", false
	case float64:
		return floatLiteral(v)
	case float32:
		return floatLiteral(float64(v))
	case decimal.Decimal:
		return v.String(), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToString(v), true
	}

	token, err := cast.ToStringE(raw)
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if _, err := decimal.NewFromString(token); err != nil {
		return "", false
	}
	return token, true
}

func floatLiteral(v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	return decimal.NewFromFloat(v).String(), true
}

// QuoteIdentifier double-quotes a column name. Embedded double quotes are doubled.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ContainsQuote reports whether any text column of the records holds a single quote.
// Used to flag tables whose statements rely on unescaped quoting.
func ContainsQuote(spec types.TableSpec, records []types.Record) bool {
	for _, record := range records {
		for _, column := range spec.Columns {
			if column.Kind != types.KindText {
				continue
			}
			if strings.Contains(cast.ToString(record[column.Field]), "'") {
				return true
			}
		}
	}
	return false
}

func isEmpty(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// =============================================================================
// BATCHES AND DOCUMENTS
// =============================================================================

// Batch is the ordered statements of one table under a banner comment.
type Batch struct {
	Label      string
	Statements []string
}

// NewBatch serializes records into a batch labelled with the spec's banner label.
func (s *Serializer) NewBatch(spec types.TableSpec, records []types.Record) (Batch, error) {
	statements, err := s.Serialize(spec, records)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Label: spec.BannerLabel(), Statements: statements}, nil
}

// String renders the banner line followed by the statements.
// An empty batch renders the banner line only.
func (b Batch) String() string {
	var builder strings.Builder
	builder.WriteString("-- ")
	builder.WriteString(b.Label)
	builder.WriteString("\n")
	for _, statement := range b.Statements {
		builder.WriteString(statement)
	}
	return builder.String()
}

// Document is the full content of one migration file.
type Document struct {
	// Preamble lines are written as comments before the first batch.
	Preamble []string

	Batches []Batch
}

// WriteTo writes the document. Batches are separated by one blank line.
func (d Document) WriteTo(w io.Writer) (int64, error) {
	var builder strings.Builder

	for _, line := range d.Preamble {
		builder.WriteString("-- ")
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	if len(d.Preamble) > 0 && len(d.Batches) > 0 {
		builder.WriteString("\n")
	}

	for i, batch := range d.Batches {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(batch.String())
	}

	n, err := io.WriteString(w, builder.String())
	return int64(n), err
}

// Bytes renders the document into memory.
func (d Document) Bytes() []byte {
	var builder strings.Builder
	_, _ = d.WriteTo(&builder)
	return []byte(builder.String())
}

// StatementCount returns the number of statements across all batches.
func (d Document) StatementCount() int {
	total := 0
	for _, batch := range d.Batches {
		total += len(batch.Statements)
	}
	return total
}
