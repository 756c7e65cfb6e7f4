package csvparser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestParseBasic(t *testing.T) {
	path := writeFile(t, "scores.csv", []byte("id,score\nA1,10\n \nB2,20.5\n"))

	data, err := Parse(path, config.CSVSettings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "score"}, data.Headers)
	assert.Equal(t, 2, data.RowCount)
	assert.Equal(t, path, data.SourceFile)
	assert.Equal(t, "20.5", data.Rows[1]["score"])

	// The empty line is skipped but line numbers still point into the file.
	assert.Equal(t, []int{2, 4}, data.LineNumbers)
	assert.Equal(t, 4, data.LineOf(1))
	assert.Equal(t, 0, data.LineOf(5))

	records := data.Records()
	require.Len(t, records, 2)
	assert.Equal(t, types.Record{"id": "A1", "score": "10"}, records[0])
}

func TestParseKeepsWhitespace(t *testing.T) {
	content := "name,code\n  O'Brien  ,\" 007\"\n"

	data, err := ParseReader(strings.NewReader(content), config.CSVSettings{})
	require.NoError(t, err)

	require.Len(t, data.Rows, 1)
	assert.Equal(t, "  O'Brien  ", data.Rows[0]["name"])
	assert.Equal(t, " 007", data.Rows[0]["code"])
}

func TestParseStripsBOM(t *testing.T) {
	path := writeFile(t, "bom.csv", []byte("\xef\xbb\xbf機器ID,測定値(mm)\nP-101,8.2\n"))

	data, err := Parse(path, config.CSVSettings{})
	require.NoError(t, err)

	assert.Equal(t, []string{"機器ID", "測定値(mm)"}, data.Headers)
	assert.Equal(t, "8.2", data.Rows[0]["測定値(mm)"])
}

func TestParseShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().String("機器ID,判定結果\nP-101,合格\n")
	require.NoError(t, err)
	path := writeFile(t, "sjis.csv", []byte(encoded))

	settings := config.CSVSettings{Encoding: "Shift_JIS"}

	data, err := Parse(path, settings)
	require.NoError(t, err)
	assert.Equal(t, "合格", data.Rows[0]["判定結果"])
}

func TestParseMultiLineHeaders(t *testing.T) {
	content := "測定,,判定\n日時,機器ID,結果\n2024-01-01,P-101,OK\n"

	settings := config.CSVSettings{HeaderRows: 2}
	data, err := ParseReader(strings.NewReader(content), settings)
	require.NoError(t, err)

	assert.Equal(t, []string{"測定 日時", "機器ID", "判定 結果"}, data.Headers)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "OK", data.Rows[0]["判定 結果"])
}

func TestParseDelimiterAndShortRows(t *testing.T) {
	content := "a|b|\nx\n"

	data, err := ParseReader(strings.NewReader(content), config.CSVSettings{Delimiter: "pipe"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "Column_3"}, data.Headers)
	assert.Equal(t, map[string]string{"a": "x", "b": "", "Column_3": ""}, data.Rows[0])
}

func TestParseDataStartRow(t *testing.T) {
	content := "id\nskipped\nkept\n"

	data, err := ParseReader(strings.NewReader(content), config.CSVSettings{DataStartRow: 3})
	require.NoError(t, err)

	require.Len(t, data.Rows, 1)
	assert.Equal(t, "kept", data.Rows[0]["id"])
	assert.Equal(t, []int{3}, data.LineNumbers)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.csv"), config.CSVSettings{})
	require.Error(t, err)

	var unavailable *types.SourceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseEmptyFile(t *testing.T) {
	_, err := ParseReader(strings.NewReader(""), config.CSVSettings{})
	assert.Error(t, err)
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "UTF-8", "utf-8-sig", "Shift_JIS", "cp932", "EUC-JP", "ISO-2022-JP", "latin1", "Windows-1252"} {
		_, err := LookupEncoding(name)
		assert.NoError(t, err, name)
	}

	_, err := LookupEncoding("EBCDIC")
	assert.Error(t, err)
}

func TestResolveDelimiter(t *testing.T) {
	tests := map[string]rune{"": ',', "tab": '\t', "\\t": '\t', ";": ';', "、": '、'}
	for input, want := range tests {
		got, err := ResolveDelimiter(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ResolveDelimiter("ab")
	assert.Error(t, err)
	_, err = ResolveDelimiter(`"`)
	assert.Error(t, err)
}
