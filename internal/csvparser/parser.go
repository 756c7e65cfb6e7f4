// =============================================================================
// sheet2sql - CSV Parser Module
// =============================================================================
//
// This module parses delimited text sources into Records. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Multi-line headers
//   - Custom data start rows
//   - Japanese and Western legacy encodings (Shift_JIS, EUC-JP, ...)
//   - A leading UTF-8 byte order mark (spreadsheet tools often write one)
//
// Every data row keeps the line number it started on, so diagnostics can
// point at the offending line of the source file.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/sheet2sql/internal/config"
	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents the parsed CSV file.
type CSVData struct {
	// Headers contains the column headers. For multi-line headers, these
	// are the merged headers.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// LineNumbers holds, for each entry of Rows, the 1-indexed line of the
	// file the row starts on.
	LineNumbers []int

	// SourceFile is the path to the source CSV file.
	SourceFile string

	// RowCount is the number of data rows (excluding headers and empty rows).
	RowCount int
}

// Records returns the rows as Records, in file order.
func (d *CSVData) Records() []types.Record {
	records := make([]types.Record, len(d.Rows))
	for i, row := range d.Rows {
		record := make(types.Record, len(row))
		for k, v := range row {
			record[k] = v
		}
		records[i] = record
	}
	return records
}

// LineOf returns the source line of the data row at index, or 0 if unknown.
func (d *CSVData) LineOf(index int) int {
	if index < 0 || index >= len(d.LineNumbers) {
		return 0
	}
	return d.LineNumbers[index]
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// RETURNS:
//   - The parsed data.
//   - A *types.SourceUnavailableError if the file cannot be opened, or a
//     plain error if it cannot be decoded or parsed.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	settings.ApplyDefaults()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, &types.SourceUnavailableError{Path: filePath, Err: err}
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	data.SourceFile = filePath

	return data, nil
}

// ParseReader parses delimited text from r.
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	settings.ApplyDefaults()

	if settings.HeaderRows <= 0 {
		return nil, fmt.Errorf("header_rows must be at least 1")
	}

	enc, err := LookupEncoding(settings.Encoding)
	if err != nil {
		return nil, err
	}

	decoded := transform.NewReader(bufio.NewReader(r), unicode.BOMOverride(enc.NewDecoder()))

	csvReader := csv.NewReader(decoded)
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	var (
		allRows [][]string
		lines   []int
	)
	for {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := csvReader.FieldPos(0)
		allRows = append(allRows, row)
		lines = append(lines, line)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	rows, rowLines := extractDataRows(allRows, lines, headers, settings)

	return &CSVData{
		Headers:     headers,
		Rows:        rows,
		LineNumbers: rowLines,
		RowCount:    len(rows),
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	delimiter, err := ResolveDelimiter(settings.Delimiter)
	if err != nil {
		return err
	}
	reader.Comma = delimiter

	// Rows may have a different number of fields than the header.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return nil
}

// ResolveDelimiter maps a delimiter setting to a rune. Empty means comma.
func ResolveDelimiter(value string) (rune, error) {
	switch value {
	case "", ",", "comma":
		return ',', nil
	case "\\t", "\t", "tab", "TAB":
		return '\t', nil
	case "|", "pipe", "PIPE":
		return '|', nil
	case ";", "semicolon":
		return ';', nil
	}

	runes := []rune(value)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\r' || runes[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", value)
	}
	return runes[0], nil
}

// LookupEncoding returns the text encoding for a setting value. Empty means
// UTF-8. Names are matched case-insensitively, ignoring '-' and '_'.
func LookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(name))

	switch key {
	case "", "utf8", "utf8bom", "utf8sig":
		return unicode.UTF8, nil
	case "shiftjis", "sjis", "cp932", "windows31j", "mskanji":
		return japanese.ShiftJIS, nil
	case "eucjp":
		return japanese.EUCJP, nil
	case "iso2022jp", "jis":
		return japanese.ISO2022JP, nil
	case "iso88591", "latin1":
		return charmap.ISO8859_1, nil
	case "windows1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// extractHeaders extracts and merges headers from the CSV.
//
// MULTI-LINE HEADER HANDLING:
//   Non-empty cells of each header row are joined with a space, per column.
//
//   Row 1: "測定", "", "判定"
//   Row 2: "日時", "機器ID", "結果"
//   Result: "測定 日時", "機器ID", "判定 結果"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	if len(allRows) < settings.HeaderRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if settings.HeaderRows == 1 {
		return cleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < settings.HeaderRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string

		for row := 0; row < settings.HeaderRows; row++ {
			if col < len(allRows[row]) {
				value := strings.TrimSpace(allRows[row][col])
				if value != "" {
					parts = append(parts, value)
				}
			}
		}

		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
}

// cleanHeaders trims headers and names empty ones Column_N.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows converts rows from DataStartRow on into maps. Empty rows
// are skipped; short rows are padded with empty values. Cell values are kept
// verbatim, surrounding whitespace included.
func extractDataRows(allRows [][]string, lines []int, headers []string, settings config.CSVSettings) ([]map[string]string, []int) {
	// DataStartRow is 1-indexed.
	startIndex := settings.DataStartRow - 1
	if startIndex < settings.HeaderRows {
		startIndex = settings.HeaderRows
	}

	if startIndex >= len(allRows) {
		return []map[string]string{}, []int{}
	}

	dataRows := make([]map[string]string, 0, len(allRows)-startIndex)
	rowLines := make([]int, 0, len(allRows)-startIndex)

	for rowIndex := startIndex; rowIndex < len(allRows); rowIndex++ {
		row := allRows[rowIndex]

		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = row[colIndex]
			} else {
				rowMap[header] = ""
			}
		}

		dataRows = append(dataRows, rowMap)
		rowLines = append(rowLines, lines[rowIndex])
	}

	return dataRows, rowLines
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
