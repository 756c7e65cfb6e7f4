// =============================================================================
// sheet2sql - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which exports spreadsheets to
// CSV so they can be inspected and used as table sources.
//
// COMMAND USAGE:
//   sheet2sql convert [files...] [flags]
//
// Without arguments every *.xlsx / *.xlsm file in input_dir is converted.
// Each file is written to output_dir as "<name>_converted.csv" and the
// first rows are printed as a preview.
//
// FLAGS:
//   --sheet    : Worksheet to export (default: first sheet)
//   --preview  : Number of rows to preview (0 disables the preview)
//
// A file that cannot be read is reported and skipped; the other files are
// still converted.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sheet2sql/internal/xlsxparser"
	"github.com/ginjaninja78/sheet2sql/pkg/utils"
)

// sheetName selects the worksheet to export.
var sheetName string

// previewRows is the number of rows printed after each conversion.
var previewRows int

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert spreadsheets to CSV files",
	Long: `The convert command exports one worksheet of each spreadsheet to a UTF-8 CSV
file named "<name>_converted.csv" in the output directory, and prints the
first rows of each converted file.

Files are recognised as spreadsheets by their content, so workbooks saved
under a .csv name are converted too.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet to export (default: first sheet)")
	convertCmd.Flags().IntVar(&previewRows, "preview", 5, "Number of rows to preview (0 disables the preview)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	mainConfig, logger, err := loadMainConfig()
	if err != nil {
		return err
	}

	fm := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir)

	files := args
	if len(files) == 0 {
		files, err = fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No spreadsheets found in %s\n", mainConfig.InputDir)
		return nil
	}

	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	var failed int
	for _, file := range files {
		outputFile := filepath.Join(mainConfig.OutputDir, utils.ConvertedFileName(file))

		logger.Debug("Converting spreadsheet", "file", file, "sheet", sheetName)

		sheet, err := xlsxparser.ConvertToCSV(file, sheetName, outputFile)
		if err != nil {
			failed++
			logger.Error("Conversion failed", "file", file, "error", err)
			fmt.Fprintf(out, "  ✗ Error converting %s: %v\n", filepath.Base(file), err)
			if !mainConfig.ContinueOnError {
				break
			}
			continue
		}

		fmt.Fprintf(out, "  ✓ Converted %s to %s (%d rows)\n", filepath.Base(file), outputFile, len(sheet.Rows))

		if previewRows > 0 {
			fmt.Fprintf(out, "\nFirst %d rows of %s:\n", previewRows, filepath.Base(outputFile))
			printPreview(out, sheet, previewRows)
			fmt.Fprintln(out, "\n" + strings.Repeat("-", 50) + "\n")
		}
	}

	if failed > 0 && (!mainConfig.ContinueOnError || failed == len(files)) {
		return fmt.Errorf("%d of %d file(s) failed to convert", failed, len(files))
	}

	return nil
}

// printPreview prints the headers and up to n rows as aligned columns.
func printPreview(w io.Writer, sheet *xlsxparser.Sheet, n int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(sheet.Headers, "\t"))
	for _, row := range sheet.Preview(n) {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}
