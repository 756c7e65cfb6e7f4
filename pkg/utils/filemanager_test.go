package utils

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.xlsm", "notes.txt", "~$a.xlsx", "c.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.xlsx"), 0755))

	fm := NewFileManager(dir, t.TempDir())

	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xlsm"), filepath.Join(dir, "b.xlsx")}, files)

	files, err = fm.DiscoverInputFiles("*.csv", "c.*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.csv")}, files)
}

func TestEnsureDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "migrations", "sql")
	require.NoError(t, NewFileManager("", out).EnsureDirectories())
	assert.True(t, FileExists(out))
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

	assert.Equal(t, "20240115_insert_data.sql",
		GenerateOutputFileNameAt("{date}_{name}.sql", map[string]string{"name": "insert_data"}, now))
	assert.Equal(t, "20240115_143022_seed.sql",
		GenerateOutputFileNameAt("{timestamp}_{name}", map[string]string{"name": "seed"}, now))

	// Substituted values are not expanded again.
	assert.Equal(t, "{date}_seed_20240115.sql",
		GenerateOutputFileNameAt("{name}_{date}.sql", map[string]string{"name": "{date}_seed"}, now))
	assert.Equal(t, "override.sql",
		GenerateOutputFileNameAt("{date}.sql", map[string]string{"date": "override"}, now))

	withID := GenerateOutputFileNameAt("{uuid}.sql", nil, now)
	assert.Len(t, strings.TrimSuffix(withID, ".sql"), 36)
}

func TestConvertedFileName(t *testing.T) {
	assert.Equal(t, "肉厚測定データ_converted.csv", ConvertedFileName(filepath.Join("in", "肉厚測定データ.xlsx")))
	assert.Equal(t, "設備別リスク評価_converted.csv", ConvertedFileName("設備別リスク評価.csv"))
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "20240115_insert_data.sql")

	n, err := WriteOutput(path, bytes.NewBufferString("-- scores\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "-- scores\n", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

type failingWriterTo struct{}

func (failingWriterTo) WriteTo(w io.Writer) (int64, error) {
	return 0, errors.New("boom")
}

func TestWriteOutputKeepsPreviousFileOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insert_data.sql")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	_, err := WriteOutput(path, failingWriterTo{})
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    time.Now(),
		Table:        "scores",
		FileName:     "scores.csv",
		ErrorType:    "malformed_value",
		ErrorMessage: "value \"n/a\" is not numeric",
		RowNumber:    4,
		FieldName:    "score",
	}}, dir)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Total Errors: 1")
	assert.Contains(t, string(content), "  Row Number:     4\n")
	assert.Contains(t, string(content), "  Field:          score\n")
}
