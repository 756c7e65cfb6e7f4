package sqlwriter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sheet2sql/internal/types"
)

func scoreSpec() types.TableSpec {
	return types.TableSpec{
		Table: "scores",
		Columns: []types.Column{
			{Name: "id", Field: "id", Kind: types.KindText},
			{Name: "score", Field: "score", Kind: types.KindNumeric},
		},
	}
}

func TestSerializeEndToEnd(t *testing.T) {
	records := []types.Record{
		{"id": "A1", "score": 10},
		{"id": "B2", "score": 20.5},
	}

	statements, err := Serialize(scoreSpec(), records)
	require.NoError(t, err)
	require.Len(t, statements, 2)

	assert.Equal(t, "INSERT INTO scores (\"id\", \"score\") VALUES (\n    'A1', 10\n);\n", statements[0])
	assert.Equal(t, "INSERT INTO scores (\"id\", \"score\") VALUES (\n    'B2', 20.5\n);\n", statements[1])
}

func TestSerializePreservesOrderAndCount(t *testing.T) {
	records := []types.Record{
		{"id": "C3", "score": "3"},
		{"id": "A1", "score": "1"},
		{"id": "A1", "score": "1"},
	}

	statements, err := Serialize(scoreSpec(), records)
	require.NoError(t, err)
	require.Len(t, statements, len(records))

	assert.Contains(t, statements[0], "'C3', 3")
	assert.Contains(t, statements[1], "'A1', 1")
	assert.Equal(t, statements[1], statements[2])
}

func TestSerializeEmptyRecords(t *testing.T) {
	statements, err := Serialize(scoreSpec(), nil)
	require.NoError(t, err)
	assert.Empty(t, statements)
}

func TestSerializeRejectsInvalidSpec(t *testing.T) {
	specs := map[string]types.TableSpec{
		"no table":   {Columns: scoreSpec().Columns},
		"no columns": {Table: "t"},
		"duplicate and unknown kind": {
			Table: "t",
			Columns: []types.Column{
				{Name: "a", Field: "a", Kind: "bogus"},
				{Name: "a", Field: "b", Kind: types.KindNumeric},
			},
		},
		"unknown kind": {
			Table:   "t",
			Columns: []types.Column{{Name: "a", Field: "a", Kind: "bogus"}},
		},
	}

	for name, spec := range specs {
		statements, err := Serialize(spec, []types.Record{{"a": "x", "b": 1}})
		var invalid *types.InvalidSpecError
		require.True(t, errors.As(err, &invalid), name)
		assert.Nil(t, statements, name)
	}
}

func TestSerializeTextIsNotEscapedByDefault(t *testing.T) {
	spec := types.TableSpec{
		Table:   "people",
		Columns: []types.Column{{Name: "name", Field: "name", Kind: types.KindText}},
	}

	statements, err := Serialize(spec, []types.Record{{"name": "O'Brien"}})
	require.NoError(t, err)
	assert.Contains(t, statements[0], "'O'Brien'")
}

func TestSerializeEscapeQuotes(t *testing.T) {
	spec := types.TableSpec{
		Table:   "people",
		Columns: []types.Column{{Name: "name", Field: "name", Kind: types.KindText}},
	}

	serializer := NewSerializer(Options{EscapeQuotes: true})
	statements, err := serializer.Serialize(spec, []types.Record{{"name": "O'Brien"}})
	require.NoError(t, err)
	assert.Contains(t, statements[0], "'O''Brien'")
}

func TestSerializeValueRendering(t *testing.T) {
	spec := scoreSpec()

	statements, err := Serialize(spec, []types.Record{{"id": "A1", "score": "12.5"}})
	require.NoError(t, err)
	assert.Contains(t, statements[0], "'A1', 12.5\n")
	assert.NotContains(t, statements[0], "'12.5'")
}

func TestSerializeMissingField(t *testing.T) {
	records := []types.Record{
		{"id": "A1", "score": 1},
		{"id": "B2"},
	}

	statements, err := Serialize(scoreSpec(), records)
	require.Error(t, err)
	assert.Nil(t, statements)

	var missing *types.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "score", missing.Field)
	assert.Equal(t, 1, missing.Index)
}

func TestSerializeMalformedNumeric(t *testing.T) {
	records := []types.Record{{"id": "A1", "score": "n/a"}}

	statements, err := Serialize(scoreSpec(), records)
	require.Error(t, err)
	assert.Nil(t, statements)

	var malformed *types.MalformedValueError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "score", malformed.Field)
	assert.Equal(t, 0, malformed.Index)
	assert.Equal(t, "n/a", malformed.Value)
}

func TestSerializeNullOnEmpty(t *testing.T) {
	spec := types.TableSpec{
		Table: "readings",
		Columns: []types.Column{
			{Name: "note", Field: "note", Kind: types.KindText, NullOnEmpty: true},
			{Name: "value", Field: "value", Kind: types.KindNumeric, NullOnEmpty: true},
		},
	}

	statements, err := Serialize(spec, []types.Record{{"note": "", "value": nil}})
	require.NoError(t, err)
	assert.Contains(t, statements[0], "NULL, NULL")
}

func TestSerializeEmptyNumericWithoutNullIsMalformed(t *testing.T) {
	_, err := Serialize(scoreSpec(), []types.Record{{"id": "A1", "score": ""}})

	var malformed *types.MalformedValueError
	require.ErrorAs(t, err, &malformed)
}

func TestSerializeCompactLayout(t *testing.T) {
	serializer := NewSerializer(Options{Layout: LayoutCompact})

	statements, err := serializer.Serialize(scoreSpec(), []types.Record{{"id": "A1", "score": 10}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO scores (\"id\", \"score\") VALUES ('A1', 10);\n", statements[0])
}

func TestNumericLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"int", 10, "10", true},
		{"int64", int64(-7), "-7", true},
		{"float", 20.5, "20.5", true},
		{"whole float", 3.0, "3", true},
		{"decimal", decimal.RequireFromString("1.250"), "1.25", true},
		{"string keeps token", " 12.50 ", "12.50", true},
		{"exponent", "1e3", "1e3", true},
		{"text", "abc", "", false},
		{"empty", "", "", false},
		{"nil", nil, "", false},
		{"bool", true, "", false},
		{"nan string", "NaN", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NumericLiteral(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"設計肉厚(mm)"`, QuoteIdentifier("設計肉厚(mm)"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}

func TestContainsQuote(t *testing.T) {
	spec := scoreSpec()
	assert.False(t, ContainsQuote(spec, []types.Record{{"id": "A1", "score": 1}}))
	assert.True(t, ContainsQuote(spec, []types.Record{{"id": "O'Brien", "score": 1}}))
}

func TestDocumentWriteTo(t *testing.T) {
	serializer := NewSerializer(DefaultOptions())

	first, err := serializer.NewBatch(types.TableSpec{
		Table:   "thickness_measurement",
		Label:   "肉厚測定データ",
		Columns: []types.Column{{Name: "機器ID", Field: "機器ID", Kind: types.KindText}},
	}, []types.Record{{"機器ID": "P-101"}})
	require.NoError(t, err)

	second, err := serializer.NewBatch(scoreSpec(), nil)
	require.NoError(t, err)

	doc := Document{
		Preamble: []string{"generated"},
		Batches:  []Batch{first, second},
	}

	var buf bytes.Buffer
	_, err = doc.WriteTo(&buf)
	require.NoError(t, err)

	want := "-- generated\n" +
		"\n" +
		"-- 肉厚測定データ\n" +
		"INSERT INTO thickness_measurement (\"機器ID\") VALUES (\n    'P-101'\n);\n" +
		"\n" +
		"-- scores\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, want, string(doc.Bytes()))
	assert.Equal(t, 1, doc.StatementCount())
}

func TestParseLayout(t *testing.T) {
	layout, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutExpanded, layout)

	layout, err = ParseLayout("Compact")
	require.NoError(t, err)
	assert.Equal(t, LayoutCompact, layout)

	_, err = ParseLayout("pretty")
	assert.Error(t, err)
}
