// =============================================================================
// sheet2sql - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, the main command of the tool.
// It turns every table spec into a batch of INSERT statements and writes
// them to a single migration file.
//
// COMMAND USAGE:
//   sheet2sql generate [flags]
//
// FLAGS:
//   --table     : Generate only the named table(s)
//   --output    : Write to this path instead of output_dir/output_name_format
//   --dry-run   : Run the pipeline without writing the migration file
//   --verify    : Execute the statements against in-memory SQLite first
//
// PROCESSING PIPELINE:
//   1. Load configuration and table specs
//   2. Validate the table specs
//   3. For each table, in order:
//      a. Load the source file
//      b. Filter, transform and serialize the rows
//   4. Optionally verify the statements
//   5. Write the migration file (once, atomically)
//   6. Print the summary and write an error log for failed tables
//
// A table whose source is missing or malformed is reported and skipped; the
// other tables are still written unless continue_on_error is false.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/converter"
	"github.com/ginjaninja78/sheet2sql/internal/sqlcheck"
	"github.com/ginjaninja78/sheet2sql/internal/types"
	"github.com/ginjaninja78/sheet2sql/internal/validation"
	"github.com/ginjaninja78/sheet2sql/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun runs the pipeline without writing the migration file.
var dryRun bool

// verify executes the statements against in-memory SQLite before writing.
var verify bool

// tableNames restricts generation to these tables.
var tableNames []string

// outputPath overrides the generated output file name.
var outputPath string

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a SQL INSERT migration from the table specs",
	Long: `The generate command reads every table spec in the tables directory, loads
each table's source file and renders one INSERT statement per row. The
statements of each table are grouped under a "-- <label>" banner, and all
tables are written to one migration file in the output directory.

Text values are embedded as-is unless the table sets escape_quotes. A warning
is logged for tables whose text contains single quotes; use --verify to
catch statements that would not parse.

On error:
  - The failing table is reported and left out of the file
  - An error log is created in the output directory
  - The other tables are still written (unless continue_on_error is false)`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the pipeline without writing the migration file")
	generateCmd.Flags().BoolVar(&verify, "verify", false, "Execute the statements against in-memory SQLite before writing")
	generateCmd.Flags().StringSliceVar(&tableNames, "table", nil, "Generate only the named table(s)")
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: output_dir/output_name_format)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runGenerate(cmd *cobra.Command) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, logger, err := loadMainConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verify") {
		mainConfig.Verify = verify
	}

	fmt.Println("=== sheet2sql ===")
	fmt.Println("Loading table specs...")

	tables, err := config.LoadTableConfigs(mainConfig.TablesDir)
	if err != nil {
		return fmt.Errorf("failed to load table specs: %w", err)
	}

	tables, err = selectTables(tables, tableNames)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("no table specs found in %s", mainConfig.TablesDir)
	}

	fmt.Printf("Loaded %d table spec(s)\n", len(tables))

	// =========================================================================
	// STEP 2: VALIDATE TABLE SPECS
	// =========================================================================

	validationResult := validation.ValidateAll(tables)
	for _, finding := range validationResult.Errors {
		if finding.Severity == validation.SeverityWarning {
			logger.Warn(finding.Message, "file", finding.File, "table", finding.Table, "column", finding.Column, "rule", finding.Rule)
		}
	}
	if !validationResult.IsValid {
		fmt.Println(validation.FormatErrors(validationResult.Errors))
		return fmt.Errorf("%d table spec error(s)", validationResult.ErrorCount)
	}

	// =========================================================================
	// STEP 3: CONVERT TABLES
	// =========================================================================

	fmt.Println("Processing tables...")

	results := converter.RunAll(tables, mainConfig, logger)

	for _, result := range results {
		if result.Success {
			fmt.Printf("  ✓ %s (%s) -> %d statement(s)\n",
				result.Table, filepath.Base(result.FilePath), result.Stats.StatementsCreated)
		} else {
			fmt.Printf("  ✗ %s (%s): %v\n", result.Table, filepath.Base(result.FilePath), result.Error)
		}
	}

	succeeded, failed, statements := converter.Summary(results)
	doc := converter.BuildDocument(results, mainConfig.Preamble)

	// =========================================================================
	// STEP 4: VERIFY
	// =========================================================================

	if mainConfig.Verify && len(doc.Batches) > 0 {
		fmt.Println("Verifying statements against SQLite...")

		if err := sqlcheck.Verify(cmd.Context(), verificationTables(results)); err != nil {
			fmt.Printf("  ✗ verification failed:\n%v\n", err)
			return fmt.Errorf("verification failed; migration file not written")
		}
		fmt.Printf("  ✓ %d statement(s) executed\n", doc.StatementCount())
	}

	// =========================================================================
	// STEP 5: WRITE OUTPUT
	// =========================================================================

	target := outputPath
	if target == "" {
		name := utils.GenerateOutputFileName(mainConfig.OutputNameFormat, map[string]string{
			"name": mainConfig.OutputName,
		})
		target = filepath.Join(mainConfig.OutputDir, name)
	}

	switch {
	case len(doc.Batches) == 0:
		fmt.Println("\nNo table was converted; migration file not written.")
	case dryRun:
		fmt.Printf("\nDry run: %d statement(s) would be written to %s\n", doc.StatementCount(), target)
	default:
		if utils.FileExists(target) {
			logger.Warn("Overwriting existing migration file", "path", target)
		}
		n, err := utils.WriteOutput(target, doc)
		if err != nil {
			return fmt.Errorf("failed to write migration file: %w", err)
		}
		logger.Debug("Migration file written", "path", target, "bytes", n)
		fmt.Printf("\nWrote %s\n", target)
	}

	// =========================================================================
	// STEP 6: PRINT SUMMARY
	// =========================================================================

	fmt.Println("\n=== Generation Complete ===")
	fmt.Printf("Total tables:    %d\n", len(tables))
	fmt.Printf("Successful:      %d\n", succeeded)
	fmt.Printf("Errors:          %d\n", failed)
	fmt.Printf("Statements:      %d\n", statements)
	fmt.Printf("Time elapsed:    %s\n", time.Since(startTime))

	if failed > 0 {
		fm := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir)
		if err := fm.EnsureDirectories(); err == nil {
			logPath, err := utils.WriteErrorLog(errorLogEntries(results), mainConfig.OutputDir)
			if err != nil {
				logger.Error("Failed to write error log", "error", err)
			} else {
				fmt.Printf("\nErrors have been logged to %s\n", logPath)
			}
		}
	}

	switch {
	case failed > 0 && !mainConfig.ContinueOnError:
		return fmt.Errorf("%d table(s) failed", failed)
	case succeeded == 0:
		return errors.New("no table could be converted")
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// selectTables keeps the tables named in names, in configured order.
// An empty names list keeps every table.
func selectTables(tables []*config.TableConfig, names []string) ([]*config.TableConfig, error) {
	if len(names) == 0 {
		return tables, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var selected []*config.TableConfig
	for _, table := range tables {
		if wanted[table.Name()] {
			selected = append(selected, table)
			delete(wanted, table.Name())
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("no table spec for table(s): %s", strings.Join(missing, ", "))
	}

	return selected, nil
}

func verificationTables(results []converter.Result) []sqlcheck.Table {
	var tables []sqlcheck.Table
	for _, result := range results {
		if result.Success {
			tables = append(tables, sqlcheck.Table{Spec: result.Spec, Batch: result.Batch})
		}
	}
	return tables
}

// errorLogEntries turns failed results into error log entries.
func errorLogEntries(results []converter.Result) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry

	for _, result := range results {
		if result.Success {
			continue
		}

		entry := utils.ErrorLogEntry{
			Timestamp:    time.Now(),
			Table:        result.Table,
			FileName:     result.FilePath,
			ErrorType:    "conversion",
			ErrorMessage: result.Error.Error(),
		}

		var (
			unavailable *types.SourceUnavailableError
			missing     *types.MissingFieldError
			malformed   *types.MalformedValueError
			recordErr   *converter.RecordError
		)
		switch {
		case errors.As(result.Error, &unavailable):
			entry.ErrorType = "source_unavailable"
		case errors.As(result.Error, &missing):
			entry.ErrorType = "missing_field"
			entry.FieldName = missing.Field
		case errors.As(result.Error, &malformed):
			entry.ErrorType = "malformed_value"
			entry.FieldName = malformed.Field
		}
		if errors.As(result.Error, &recordErr) {
			entry.RowNumber = recordErr.Line
		}

		entries = append(entries, entry)
	}

	return entries
}
