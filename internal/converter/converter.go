// =============================================================================
// sheet2sql - Converter Module
// =============================================================================
//
// This module contains the per-table conversion pipeline. It turns one
// table spec and its source file into a batch of INSERT statements.
//
// CONVERSION PIPELINE:
//   1. Build the TableSpec, filter and transforms from the table config
//   2. Load the source file (CSV or XLSX)
//   3. Drop rows rejected by the `where` filter
//   4. Apply column transforms
//   5. Serialize the records into a labelled batch
//
// Nothing is written here: the caller assembles the batches of all tables
// into one document and writes it once.
//
// CONCURRENCY:
//   Tables are processed one after another, in configured order. The batch
//   order in the output file is the table order.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/csvparser"
	"github.com/ginjaninja78/sheet2sql/internal/sqlwriter"
	"github.com/ginjaninja78/sheet2sql/internal/types"
	"github.com/ginjaninja78/sheet2sql/internal/xlsxparser"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single table.
type Result struct {
	// Table is the destination table name.
	Table string

	// FilePath is the resolved source file.
	FilePath string

	// Spec is the TableSpec the batch was rendered with.
	Spec types.TableSpec

	// Batch holds the statements. Empty if processing failed.
	Batch sqlwriter.Batch

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of non-empty source rows.
	RowsRead int

	// RowsFiltered is the number of rows dropped by the where filter.
	RowsFiltered int

	// StatementsCreated is the number of INSERT statements rendered.
	StatementsCreated int

	// UnescapedQuotes is true when a text value contains a single quote and
	// the table does not escape quotes.
	UnescapedQuotes bool

	// ProcessingTime is the time taken to process the table.
	ProcessingTime time.Duration
}

// RecordError locates a record-level failure in the source file.
type RecordError struct {
	// File is the source file.
	File string

	// Index is the zero-based record index in the source.
	Index int

	// Line is the CSV line or spreadsheet row the record came from.
	Line int

	Err error
}

func (e *RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", filepath.Base(e.File), e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", filepath.Base(e.File), e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single table.
type Converter struct {
	table      *config.TableConfig
	mainConfig *config.MainConfig
	logger     *slog.Logger
}

// source is a loaded input file.
type source struct {
	path    string
	headers []string
	records []types.Record

	// position returns the line/row of record i.
	position func(i int) int
}

// New creates a new Converter instance. A nil logger discards output.
func New(table *config.TableConfig, mainConfig *config.MainConfig, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{
		table:      table,
		mainConfig: mainConfig,
		logger:     logger.With("table", table.Name()),
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the table.
func (c *Converter) Run() (result Result) {
	startTime := time.Now()
	result = Result{
		Table:    c.table.Name(),
		FilePath: c.table.ResolveSource(c.mainConfig.InputDir),
	}
	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	// =========================================================================
	// STEP 1: BUILD SPEC, FILTER AND TRANSFORMS
	// =========================================================================

	spec, err := c.table.ToSpec()
	if err == nil {
		err = spec.Validate()
	}
	if err != nil {
		result.Error = fmt.Errorf("invalid table spec %s: %w", c.table.SourceFile, err)
		return result
	}
	result.Spec = spec

	layout, err := sqlwriter.ParseLayout(c.table.Layout)
	if err != nil {
		result.Error = fmt.Errorf("invalid table spec %s: %w", c.table.SourceFile, err)
		return result
	}

	filter, err := CompileFilter(c.table.Where)
	if err != nil {
		result.Error = fmt.Errorf("invalid table spec %s: %w", c.table.SourceFile, err)
		return result
	}

	transformer, err := NewTransformer(c.table.Columns)
	if err != nil {
		result.Error = fmt.Errorf("invalid table spec %s: %w", c.table.SourceFile, err)
		return result
	}

	// =========================================================================
	// STEP 2: LOAD SOURCE
	// =========================================================================

	c.logger.Info("Processing table", "source", result.FilePath)

	src, err := c.loadSource(result.FilePath)
	if err != nil {
		result.Error = err
		return result
	}
	result.Stats.RowsRead = len(src.records)

	c.logger.Debug("Loaded source", "rows", len(src.records), "headers", len(src.headers))

	// =========================================================================
	// STEP 3: FILTER AND TRANSFORM
	// =========================================================================

	// kept[i] is the source index of the i-th record handed to the serializer.
	records := make([]types.Record, 0, len(src.records))
	kept := make([]int, 0, len(src.records))

	for i, record := range src.records {
		match, err := filter.Match(record)
		if err != nil {
			result.Error = src.recordError(i, err)
			return result
		}
		if !match {
			result.Stats.RowsFiltered++
			continue
		}

		if err := transformer.Apply(record); err != nil {
			result.Error = src.recordError(i, err)
			return result
		}

		records = append(records, record)
		kept = append(kept, i)
	}

	if result.Stats.RowsFiltered > 0 {
		c.logger.Debug("Rows filtered", "filtered", result.Stats.RowsFiltered, "where", c.table.Where)
	}

	// =========================================================================
	// STEP 4: SERIALIZE
	// =========================================================================

	serializer := sqlwriter.NewSerializer(sqlwriter.Options{
		EscapeQuotes: c.table.EscapeQuotes,
		Layout:       layout,
	})

	batch, err := serializer.NewBatch(spec, records)
	if err != nil {
		result.Error = src.locate(err, kept)
		return result
	}

	if !c.table.EscapeQuotes && sqlwriter.ContainsQuote(spec, records) {
		result.Stats.UnescapedQuotes = true
		c.logger.Warn("Text values contain single quotes and escape_quotes is off; statements may be invalid",
			"source", result.FilePath)
	}

	result.Batch = batch
	result.Stats.StatementsCreated = len(batch.Statements)
	result.Success = true

	c.logger.Info("Table converted", "statements", len(batch.Statements))

	return result
}

// loadSource reads the table's source as CSV or XLSX. Spreadsheets are
// detected by extension or content.
func (c *Converter) loadSource(path string) (*source, error) {
	if path == "" {
		return nil, fmt.Errorf("table spec %s has no source", c.table.SourceFile)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" || ext == ".xlsm" || xlsxparser.IsSpreadsheet(path) {
		sheet, err := xlsxparser.Parse(path, c.table.Sheet)
		if err != nil {
			return nil, err
		}
		return &source{
			path:     path,
			headers:  sheet.Headers,
			records:  sheet.Records(),
			position: sheet.RowOf,
		}, nil
	}

	data, err := csvparser.Parse(path, c.table.CSVSettings)
	if err != nil {
		return nil, err
	}
	return &source{
		path:     path,
		headers:  data.Headers,
		records:  data.Records(),
		position: data.LineOf,
	}, nil
}

// SourceHeaders loads the table's source and returns its resolved path and
// headers.
func SourceHeaders(table *config.TableConfig, inputDir string) (string, []string, error) {
	path := table.ResolveSource(inputDir)
	c := New(table, &config.MainConfig{InputDir: inputDir}, nil)

	src, err := c.loadSource(path)
	if err != nil {
		return path, nil, err
	}
	return path, src.headers, nil
}

func (s *source) recordError(index int, err error) error {
	return &RecordError{File: s.path, Index: index, Line: s.position(index), Err: err}
}

// locate maps a serializer error, whose index counts filtered records, back
// to the source record.
func (s *source) locate(err error, kept []int) error {
	var missing *types.MissingFieldError
	if errors.As(err, &missing) && missing.Index < len(kept) {
		index := kept[missing.Index]
		return s.recordError(index, &types.MissingFieldError{Field: missing.Field, Index: index})
	}

	var malformed *types.MalformedValueError
	if errors.As(err, &malformed) && malformed.Index < len(kept) {
		index := kept[malformed.Index]
		return s.recordError(index, &types.MalformedValueError{Field: malformed.Field, Index: index, Value: malformed.Value})
	}

	return fmt.Errorf("%s: %w", filepath.Base(s.path), err)
}

// =============================================================================
// MULTI-TABLE PROCESSING
// =============================================================================

// RunAll converts the tables in order. When ContinueOnError is false,
// processing stops after the first failed table.
func RunAll(tables []*config.TableConfig, mainConfig *config.MainConfig, logger *slog.Logger) []Result {
	results := make([]Result, 0, len(tables))

	for _, table := range tables {
		result := New(table, mainConfig, logger).Run()
		results = append(results, result)

		if !result.Success {
			if logger != nil {
				logger.Error("Table failed", "table", result.Table, "error", result.Error)
			}
			if !mainConfig.ContinueOnError {
				break
			}
		}
	}

	return results
}

// BuildDocument assembles the batches of the successful results.
func BuildDocument(results []Result, preamble []string) sqlwriter.Document {
	doc := sqlwriter.Document{Preamble: preamble}
	for _, result := range results {
		if result.Success {
			doc.Batches = append(doc.Batches, result.Batch)
		}
	}
	return doc
}

// Summary counts successes and failures.
func Summary(results []Result) (succeeded, failed, statements int) {
	for _, result := range results {
		if result.Success {
			succeeded++
			statements += result.Stats.StatementsCreated
		} else {
			failed++
		}
	}
	return succeeded, failed, statements
}
