// =============================================================================
// sheet2sql - XLSX Parser Module
// =============================================================================
//
// This module reads spreadsheet files. It is used two ways:
//   1. As a table source: the first row of the sheet holds the headers and
//      every following non-empty row becomes a Record.
//   2. By the convert command: the sheet is exported to CSV and the first
//      rows are previewed on the console.
//
// SHEET SELECTION:
//   An empty sheet name selects the first sheet of the workbook.
//
// FILE DETECTION:
//   Spreadsheets are recognised by their ZIP signature, not only by their
//   extension: legacy exports are often saved as .xlsx content under a
//   .csv name.
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// SHEET STRUCTURE
// =============================================================================

// Sheet is the parsed content of one worksheet.
type Sheet struct {
	// Name is the worksheet name.
	Name string

	// Headers are the cells of the first row. Empty cells are named Column_N.
	Headers []string

	// Rows are the data rows, padded to len(Headers).
	Rows [][]string

	// RowNumbers holds the 1-indexed spreadsheet row of each entry of Rows.
	RowNumbers []int

	// SourceFile is the path to the workbook.
	SourceFile string
}

// Records returns the rows as Records keyed by header.
func (s *Sheet) Records() []types.Record {
	records := make([]types.Record, len(s.Rows))
	for i, row := range s.Rows {
		record := make(types.Record, len(s.Headers))
		for col, header := range s.Headers {
			record[header] = row[col]
		}
		records[i] = record
	}
	return records
}

// RowOf returns the spreadsheet row of the data row at index, or 0 if unknown.
func (s *Sheet) RowOf(index int) int {
	if index < 0 || index >= len(s.RowNumbers) {
		return 0
	}
	return s.RowNumbers[index]
}

// Preview returns up to n data rows.
func (s *Sheet) Preview(n int) [][]string {
	if n < 0 || n > len(s.Rows) {
		n = len(s.Rows)
	}
	return s.Rows[:n]
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads one worksheet of an XLSX file.
//
// PARAMETERS:
//   - path: The path to the workbook.
//   - sheetName: The worksheet to read; empty selects the first sheet.
//
// RETURNS:
//   - The parsed sheet.
//   - A *types.SourceUnavailableError if the workbook cannot be opened, or
//     a plain error if the sheet does not exist or cannot be read.
func Parse(path, sheetName string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &types.SourceUnavailableError{Path: path, Err: err}
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("%s: workbook has no sheets", path)
		}
	} else if index, err := f.GetSheetIndex(sheetName); err != nil || index < 0 {
		return nil, fmt.Errorf("%s: sheet %q not found (available: %s)",
			path, sheetName, strings.Join(f.GetSheetList(), ", "))
	}

	rows, err := readRows(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read rows of sheet %q: %w", path, sheetName, err)
	}

	sheet := buildSheet(rows)
	sheet.Name = sheetName
	sheet.SourceFile = path

	return sheet, nil
}

// readRows returns the cell values of a sheet. Numbers are read unformatted,
// so a cell shown as "1,234.50" yields "1234.5". Date, time and boolean
// cells keep their displayed text.
func readRows(f *excelize.File, sheetName string) ([][]string, error) {
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	displayed, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	dateStyles := make(map[int]bool)
	for r, row := range rows {
		if r >= len(displayed) {
			break
		}
		for c, value := range row {
			if c >= len(displayed[r]) || displayed[r][c] == value {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			keep, err := keepDisplayed(f, sheetName, cell, dateStyles)
			if err != nil {
				return nil, err
			}
			if keep {
				row[c] = displayed[r][c]
			}
		}
	}

	return rows, nil
}

// keepDisplayed reports whether a cell's formatted text is its value.
// Results for number-format styles are cached by style ID.
func keepDisplayed(f *excelize.File, sheetName, cell string, dateStyles map[int]bool) (bool, error) {
	cellType, err := f.GetCellType(sheetName, cell)
	if err != nil {
		return false, err
	}
	if cellType == excelize.CellTypeBool || cellType == excelize.CellTypeDate {
		return true, nil
	}

	styleID, err := f.GetCellStyle(sheetName, cell)
	if err != nil {
		return false, err
	}
	if isDate, ok := dateStyles[styleID]; ok {
		return isDate, nil
	}

	style, err := f.GetStyle(styleID)
	if err != nil {
		return false, err
	}
	isDate := isDateStyle(style)
	dateStyles[styleID] = isDate

	return isDate, nil
}

// isDateStyle reports whether a style's number format renders dates or times.
func isDateStyle(style *excelize.Style) bool {
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}

	// Built-in date and time formats, including the CJK locale ones.
	switch n := style.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a number format code contains date or
// time tokens. Quoted literals, escaped characters and bracketed sections
// such as [Red] or [$-411] are ignored.
func isDateFormatCode(code string) bool {
	var tokens strings.Builder
	inQuote, inBracket, escaped := false, false, false

	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			tokens.WriteRune(r)
		}
	}

	return strings.ContainsAny(strings.ToLower(tokens.String()), "ymdhs")
}

// buildSheet splits raw rows into headers and padded data rows.
func buildSheet(rows [][]string) *Sheet {
	sheet := &Sheet{
		Headers:    []string{},
		Rows:       [][]string{},
		RowNumbers: []int{},
	}
	if len(rows) == 0 {
		return sheet
	}

	// Data rows may be wider than the header row.
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	sheet.Headers = make([]string, width)
	for i := 0; i < width; i++ {
		header := ""
		if i < len(rows[0]) {
			header = strings.TrimSpace(rows[0][i])
		}
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		sheet.Headers[i] = header
	}

	for i := 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		padded := make([]string, width)
		copy(padded, rows[i])
		sheet.Rows = append(sheet.Rows, padded)
		sheet.RowNumbers = append(sheet.RowNumbers, i+1)
	}

	return sheet
}

// =============================================================================
// CSV EXPORT
// =============================================================================

// WriteCSV writes the headers and rows of a sheet as UTF-8 CSV.
func WriteCSV(sheet *Sheet, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(sheet.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range sheet.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", sheet.RowOf(i), err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ConvertToCSV reads a sheet of the workbook at path and writes it to
// outputPath.
//
// RETURNS:
//   - The parsed sheet, for previewing.
//   - An error if the workbook cannot be read or the CSV cannot be written.
func ConvertToCSV(path, sheetName, outputPath string) (*Sheet, error) {
	sheet, err := Parse(path, sheetName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(sheet, &buf); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	return sheet, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var zipSignature = []byte("PK\x03\x04")

// IsSpreadsheet reports whether the file at path is an XLSX workbook,
// judged by its content. Unreadable files are reported as not spreadsheets.
func IsSpreadsheet(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, zipSignature)
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
