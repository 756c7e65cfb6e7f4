// =============================================================================
// sheet2sql - Transformation Engine
// =============================================================================
//
// This module applies column-level transformations to record values before
// they are rendered into SQL. Transformations are declared per column in the
// table spec file and run in order.
//
// EXAMPLE:
//
//   columns:
//     - name: 測定値(mm)
//       kind: numeric
//       transforms:
//         - type: remove_thousands_separator
//         - type: format_number
//           value: "2"
//     - name: 判定結果
//       transforms:
//         - type: lookup
//           lookup_table: {OK: 合格, NG: 不合格}
//         - type: if_empty_use_default
//           value: 未判定
//           when: row["検査日"] != ""
//
// CONDITIONS:
//   `when` and the table-level `where` are expr-lang expressions. They see
//   `row` (the record) and, for transforms, `value` (the current value).
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// TRANSFORMER STRUCTURE
// =============================================================================

// Transformer applies the column transforms of one table.
type Transformer struct {
	rules []fieldRule
}

// fieldRule holds the compiled actions for one source field.
type fieldRule struct {
	field   string
	actions []compiledAction
}

type compiledAction struct {
	action config.TransformationAction
	when   *vm.Program
	re     *regexp.Regexp
}

// KnownTransforms lists the supported transformation types.
var KnownTransforms = map[string]bool{
	"trim":                       true,
	"uppercase":                  true,
	"lowercase":                  true,
	"prepend_string":             true,
	"append_string":              true,
	"replace":                    true,
	"regex_replace":              true,
	"pad_zeros_to_length":        true,
	"remove_thousands_separator": true,
	"format_number":              true,
	"format_date":                true,
	"lookup":                     true,
	"if_empty_use_default":       true,
}

// NewTransformer compiles the transforms declared on the columns.
//
// RETURNS:
//   - A Transformer; columns without transforms are skipped.
//   - An error for unknown types, invalid regexes or invalid `when` expressions.
func NewTransformer(columns []config.ColumnConfig) (*Transformer, error) {
	t := &Transformer{}

	for _, column := range columns {
		if len(column.Transforms) == 0 {
			continue
		}

		rule := fieldRule{field: column.Field}
		for i, action := range column.Transforms {
			compiled, err := compileAction(action)
			if err != nil {
				return nil, fmt.Errorf("column %q transform %d (%s): %w", column.Name, i+1, action.Type, err)
			}
			rule.actions = append(rule.actions, compiled)
		}
		t.rules = append(t.rules, rule)
	}

	return t, nil
}

func compileAction(action config.TransformationAction) (compiledAction, error) {
	compiled := compiledAction{action: action}

	if !KnownTransforms[action.Type] {
		return compiled, fmt.Errorf("unknown transformation type: %s", action.Type)
	}

	switch action.Type {
	case "regex_replace":
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return compiled, fmt.Errorf("invalid pattern: %w", err)
		}
		compiled.re = re
	case "pad_zeros_to_length", "format_number":
		if n, err := strconv.Atoi(action.Value); err != nil || n < 0 {
			return compiled, fmt.Errorf("value must be a non-negative integer, got %q", action.Value)
		}
	case "format_date":
		if len(strings.Split(action.Value, "|")) != 2 {
			return compiled, fmt.Errorf("value must be \"input_layout|output_layout\", got %q", action.Value)
		}
	}

	if action.When != "" {
		program, err := expr.Compile(action.When, expr.Env(conditionEnv("", nil)), expr.AsBool())
		if err != nil {
			return compiled, fmt.Errorf("invalid when condition: %w", err)
		}
		compiled.when = program
	}

	return compiled, nil
}

// Empty reports whether no column declares transforms.
func (t *Transformer) Empty() bool {
	return t == nil || len(t.rules) == 0
}

// =============================================================================
// APPLYING TRANSFORMS
// =============================================================================

// Apply transforms the record in place. Fields absent from the record are
// left absent so the serializer can report them.
func (t *Transformer) Apply(record types.Record) error {
	if t.Empty() {
		return nil
	}

	for _, rule := range t.rules {
		raw, exists := record[rule.field]
		if !exists {
			continue
		}

		value := cast.ToString(raw)
		for _, action := range rule.actions {
			apply, err := action.applies(value, record)
			if err != nil {
				return fmt.Errorf("field %q: %w", rule.field, err)
			}
			if !apply {
				continue
			}

			value, err = applyAction(value, action)
			if err != nil {
				return fmt.Errorf("failed to apply %s to field %q: %w", action.action.Type, rule.field, err)
			}
		}

		record[rule.field] = value
	}

	return nil
}

func (a compiledAction) applies(value string, record types.Record) (bool, error) {
	if a.when == nil {
		return true, nil
	}
	out, err := expr.Run(a.when, conditionEnv(value, record))
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", a.action.When, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

// applyAction applies a single transformation action to a value.
func applyAction(value string, compiled compiledAction) (string, error) {
	action := compiled.action

	switch action.Type {
	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		return compiled.re.ReplaceAllString(value, action.Value), nil

	case "pad_zeros_to_length":
		length, _ := strconv.Atoi(action.Value)
		return PadLeft(value, length, '0'), nil

	case "remove_thousands_separator":
		return strings.ReplaceAll(value, ",", ""), nil

	case "format_number":
		// "1234.5" with value "2" becomes "1234.50". Non-numbers pass through.
		places, _ := strconv.Atoi(action.Value)
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return value, nil
		}
		return d.StringFixed(int32(places)), nil

	case "format_date":
		// Value is "input_layout|output_layout" in Go time layouts,
		// e.g. "2006/01/02|2006-01-02". Unparseable dates pass through.
		parts := strings.Split(action.Value, "|")
		parsed, err := time.Parse(strings.TrimSpace(parts[0]), strings.TrimSpace(value))
		if err != nil {
			return value, nil
		}
		return parsed.Format(strings.TrimSpace(parts[1])), nil

	case "lookup":
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// PadLeft pads s on the left with padChar up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	count := utf8.RuneCountInString(s)
	if count >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-count) + s
}

// =============================================================================
// ROW FILTER
// =============================================================================

// Filter is a compiled table-level `where` expression.
type Filter struct {
	source  string
	program *vm.Program
}

// CompileFilter compiles a where expression. An empty source yields a nil
// filter, which matches every record.
func CompileFilter(source string) (*Filter, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	program, err := expr.Compile(source, expr.Env(conditionEnv("", nil)), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid where expression: %w", err)
	}

	return &Filter{source: source, program: program}, nil
}

// Match evaluates the filter against a record.
func (f *Filter) Match(record types.Record) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, conditionEnv("", record))
	if err != nil {
		return false, fmt.Errorf("evaluating where %q: %w", f.source, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}

func conditionEnv(value string, record types.Record) map[string]any {
	row := make(map[string]any, len(record))
	for k, v := range record {
		row[k] = v
	}
	return map[string]any{
		"value": value,
		"row":   row,
	}
}
