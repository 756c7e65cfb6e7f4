package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

func TestApplyAction(t *testing.T) {
	tests := []struct {
		name   string
		action config.TransformationAction
		input  string
		want   string
	}{
		{"trim", config.TransformationAction{Type: "trim"}, "  a  ", "a"},
		{"uppercase", config.TransformationAction{Type: "uppercase"}, "p-101", "P-101"},
		{"lowercase", config.TransformationAction{Type: "lowercase"}, "OK", "ok"},
		{"prepend", config.TransformationAction{Type: "prepend_string", Value: "EQ-"}, "101", "EQ-101"},
		{"append", config.TransformationAction{Type: "append_string", Value: "mm"}, "8", "8mm"},
		{"replace", config.TransformationAction{Type: "replace", Find: "/", Value: "-"}, "2024/01/02", "2024-01-02"},
		{"pad", config.TransformationAction{Type: "pad_zeros_to_length", Value: "5"}, "42", "00042"},
		{"pad longer", config.TransformationAction{Type: "pad_zeros_to_length", Value: "2"}, "123", "123"},
		{"thousands", config.TransformationAction{Type: "remove_thousands_separator"}, "1,234,567", "1234567"},
		{"format number", config.TransformationAction{Type: "format_number", Value: "2"}, "1234.5", "1234.50"},
		{"format non-number", config.TransformationAction{Type: "format_number", Value: "2"}, "n/a", "n/a"},
		{"format date", config.TransformationAction{Type: "format_date", Value: "2006/01/02|2006-01-02"}, "2024/03/09", "2024-03-09"},
		{"format bad date", config.TransformationAction{Type: "format_date", Value: "2006/01/02|2006-01-02"}, "昨日", "昨日"},
		{"lookup hit", config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"OK": "合格"}}, "OK", "合格"},
		{"lookup miss", config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"OK": "合格"}}, "NG", "NG"},
		{"default", config.TransformationAction{Type: "if_empty_use_default", Value: "未判定"}, " ", "未判定"},
		{"default kept", config.TransformationAction{Type: "if_empty_use_default", Value: "未判定"}, "合格", "合格"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := compileAction(tt.action)
			require.NoError(t, err)

			got, err := applyAction(tt.input, compiled)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegexReplace(t *testing.T) {
	compiled, err := compileAction(config.TransformationAction{Type: "regex_replace", Find: `\s+`, Value: " "})
	require.NoError(t, err)

	got, err := applyAction("a   b\tc", compiled)
	require.NoError(t, err)
	assert.Equal(t, "a b c", got)
}

func TestCompileActionErrors(t *testing.T) {
	bad := []config.TransformationAction{
		{Type: "explode"},
		{Type: "regex_replace", Find: "("},
		{Type: "pad_zeros_to_length", Value: "x"},
		{Type: "format_number", Value: "-1"},
		{Type: "format_date", Value: "2006-01-02"},
		{Type: "trim", When: "value +"},
		{Type: "trim", When: `"not a bool"`},
	}

	for _, action := range bad {
		_, err := compileAction(action)
		assert.Error(t, err, "%+v", action)
	}
}

func TestTransformerApply(t *testing.T) {
	columns := []config.ColumnConfig{
		{Name: "id", Field: "id"},
		{Name: "result", Field: "判定", Transforms: []config.TransformationAction{
			{Type: "lookup", LookupTable: map[string]string{"OK": "合格", "NG": "不合格"}},
			{Type: "if_empty_use_default", Value: "未判定", When: `row["検査日"] != ""`},
		}},
		{Name: "value", Field: "測定値", Transforms: []config.TransformationAction{
			{Type: "remove_thousands_separator"},
		}},
		{Name: "absent", Field: "absent", Transforms: []config.TransformationAction{{Type: "trim"}}},
	}

	transformer, err := NewTransformer(columns)
	require.NoError(t, err)
	assert.False(t, transformer.Empty())

	record := types.Record{"id": "1", "判定": "OK", "測定値": "1,200", "検査日": "2024-01-01"}
	require.NoError(t, transformer.Apply(record))
	assert.Equal(t, "合格", record["判定"])
	assert.Equal(t, "1200", record["測定値"])
	_, exists := record["absent"]
	assert.False(t, exists)

	undated := types.Record{"id": "2", "判定": "", "測定値": "5", "検査日": ""}
	require.NoError(t, transformer.Apply(undated))
	assert.Equal(t, "", undated["判定"])

	dated := types.Record{"id": "3", "判定": "", "測定値": "5", "検査日": "2024-01-02"}
	require.NoError(t, transformer.Apply(dated))
	assert.Equal(t, "未判定", dated["判定"])
}

func TestTransformerWhenUsesValue(t *testing.T) {
	transformer, err := NewTransformer([]config.ColumnConfig{
		{Name: "code", Field: "code", Transforms: []config.TransformationAction{
			{Type: "prepend_string", Value: "X-", When: `len(value) < 3`},
		}},
	})
	require.NoError(t, err)

	short := types.Record{"code": "12"}
	long := types.Record{"code": "1234"}
	require.NoError(t, transformer.Apply(short))
	require.NoError(t, transformer.Apply(long))

	assert.Equal(t, "X-12", short["code"])
	assert.Equal(t, "1234", long["code"])
}

func TestNewTransformerReportsColumn(t *testing.T) {
	_, err := NewTransformer([]config.ColumnConfig{
		{Name: "判定", Field: "判定", Transforms: []config.TransformationAction{{Type: "explode"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "判定")
}

func TestEmptyTransformer(t *testing.T) {
	transformer, err := NewTransformer([]config.ColumnConfig{{Name: "id", Field: "id"}})
	require.NoError(t, err)
	assert.True(t, transformer.Empty())
	assert.NoError(t, transformer.Apply(types.Record{"id": "x"}))
}

func TestFilter(t *testing.T) {
	filter, err := CompileFilter(`row["判定結果"] != "合格"`)
	require.NoError(t, err)

	match, err := filter.Match(types.Record{"判定結果": "不合格"})
	require.NoError(t, err)
	assert.True(t, match)

	match, err = filter.Match(types.Record{"判定結果": "合格"})
	require.NoError(t, err)
	assert.False(t, match)
}

func TestNilFilterMatchesEverything(t *testing.T) {
	filter, err := CompileFilter("  ")
	require.NoError(t, err)
	assert.Nil(t, filter)

	match, err := filter.Match(types.Record{})
	require.NoError(t, err)
	assert.True(t, match)
}

func TestCompileFilterErrors(t *testing.T) {
	_, err := CompileFilter(`row["a"] ==`)
	assert.Error(t, err)

	_, err = CompileFilter(`1 + 2`)
	assert.Error(t, err)
}

func TestPadLeftCountsRunes(t *testing.T) {
	assert.Equal(t, "0機器", PadLeft("機器", 3, '0'))
}
