// =============================================================================
// sheet2sql - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the commands:
//   - Directory management
//   - Spreadsheet discovery for the convert command
//   - Output file naming
//   - Atomic output writing
//   - Error log generation
//
// OUTPUT STRATEGY:
//   - The migration file is written once, through a temporary file in the
//     same directory that is renamed into place
//   - A failed run leaves any previous file untouched
//   - An error log is written next to the output when tables fail
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the commands.
type FileManager struct {
	// InputDir is the directory where source files are placed.
	InputDir string

	// OutputDir is the directory where output files are placed.
	OutputDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directory if it doesn't exist.
// The input directory is only read and must already exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.OutputDir, err)
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// SpreadsheetPatterns are the default patterns for DiscoverInputFiles.
var SpreadsheetPatterns = []string{"*.xlsx", "*.xlsm"}

// DiscoverInputFiles scans the input directory for files matching any of
// the patterns.
//
// PARAMETERS:
//   - patterns: Glob patterns (e.g., "*.xlsx"). Defaults to SpreadsheetPatterns.
//
// RETURNS:
//   - The matching regular files, sorted and without duplicates.
//   - An error if a pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = SpreadsheetPatterns
	}

	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan input directory: %w", err)
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			info, err := os.Stat(file)
			if err != nil || info.IsDir() {
				continue
			}
			// Skip Excel lock files (~$book.xlsx).
			if strings.HasPrefix(filepath.Base(file), "~$") {
				continue
			}
			seen[file] = true
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates the migration file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//               {name}      - Migration name
//   - params: A map of placeholder values, e.g. {"name": "insert_data"}.
//
// EXAMPLE:
//   format: "{date}_{name}.sql"
//   params: {"name": "insert_data"}
//   output: "20240115_insert_data.sql"
func GenerateOutputFileName(format string, params map[string]string) string {
	return GenerateOutputFileNameAt(format, params, time.Now())
}

// GenerateOutputFileNameAt is GenerateOutputFileName for a fixed time.
func GenerateOutputFileNameAt(format string, params map[string]string, now time.Time) string {
	// Params come first so they override the built-in placeholders. A single
	// replacer pass leaves placeholders inside substituted values untouched.
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []string
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", params[key])
	}
	pairs = append(pairs,
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	)
	if strings.Contains(format, "{uuid}") {
		pairs = append(pairs, "{uuid}", uuid.New().String())
	}

	result := strings.NewReplacer(pairs...).Replace(format)

	if !strings.HasSuffix(strings.ToLower(result), ".sql") {
		result += ".sql"
	}

	return result
}

// ConvertedFileName returns the CSV name for a converted spreadsheet:
// "data/肉厚測定データ.xlsx" becomes "肉厚測定データ_converted.csv".
func ConvertedFileName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_converted.csv"
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteOutput writes content to path atomically: it is written to a
// temporary file in the same directory, synced and renamed into place.
//
// RETURNS:
//   - The number of bytes written.
//   - An error if any step fails; the temporary file is removed.
func WriteOutput(path string, content io.WriterTo) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	writer := bufio.NewWriter(tmp)
	n, err := content.WriteTo(writer)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to write output: %w", err)
	}
	if err := writer.Flush(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to flush output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move output into place: %w", err)
	}

	return n, nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	Table        string
	FileName     string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
}

// WriteErrorLog writes error entries to a log file in outputDir.
//
// RETURNS:
//   - The path to the error log file, empty if there were no entries.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writeErrorLog(writer, entries, time.Now())

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

func writeErrorLog(w io.Writer, entries []ErrorLogEntry, generated time.Time) {
	fmt.Fprintf(w, "sheet2sql - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		generated.Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(w, "Error #%d\n"+
			"  Timestamp:      %s\n"+
			"  Table:          %s\n"+
			"  File:           %s\n"+
			"  Error Type:     %s\n"+
			"  Message:        %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Table,
			entry.FileName,
			entry.ErrorType,
			entry.ErrorMessage)

		if entry.RowNumber > 0 {
			fmt.Fprintf(w, "  Row Number:     %d\n", entry.RowNumber)
		}
		if entry.FieldName != "" {
			fmt.Fprintf(w, "  Field:          %s\n", entry.FieldName)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprint(w, "================================================================================\n"+
		"End of Error Log\n")
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
