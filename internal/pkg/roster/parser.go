package roster

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mert/schoolhub/internal/pkg/apperrors"
	"github.com/xuri/excelize/v2"
)

// Parse turns a roster file into its ordered data rows. The format is chosen
// by file extension: csv goes through encoding/csv, xlsx and xls through
// excelize. Legacy binary xls payloads are rejected by excelize at open time
// and surface as an unsupported-format error with the underlying cause.
//
// Column names are taken verbatim from the header row and normalized
// (lowercased, spaces and dashes collapsed to underscores) so that
// "First Name" and "first_name" address the same field.
func Parse(fileName string, data []byte) ([]Row, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(data)
	case ".xlsx", ".xls":
		return parseExcel(data)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, ext)
	}
}

func parseCSV(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed csv: %v", apperrors.ErrUnsupportedFormat, err)
		}
		records = append(records, record)
	}

	return rowsFromRecords(records)
}

func parseExcel(data []byte) ([]Row, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open workbook: %v", apperrors.ErrUnsupportedFormat, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.ErrEmptyFile
	}

	// Roster uploads carry a single sheet; extra sheets are ignored
	records, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %q: %v", apperrors.ErrUnsupportedFormat, sheets[0], err)
	}

	return rowsFromRecords(records)
}

// rowsFromRecords maps the raw cell grid to Rows, keyed by the header row
func rowsFromRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, apperrors.ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	for i, header := range records[0] {
		headers[i] = normalizeHeader(header)
	}

	// Row numbers follow the source position after the header, so a blank
	// line keeps its number and errors still point at the right spreadsheet
	// line.
	rows := make([]Row, 0, len(records)-1)
	for recordIndex, record := range records[1:] {
		if isBlank(record) {
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				fields[header] = record[i]
			} else {
				fields[header] = ""
			}
		}

		rows = append(rows, Row{RowNumber: recordIndex + 1, Fields: fields})
	}

	if len(rows) == 0 {
		return nil, apperrors.ErrEmptyFile
	}

	return rows, nil
}

// normalizeHeader lowercases a header cell and collapses separators so that
// "First Name", "first-name" and "first_name" all map to "first_name"
func normalizeHeader(header string) string {
	header = strings.ToLower(trim(header))
	header = strings.ReplaceAll(header, " ", "_")
	header = strings.ReplaceAll(header, "-", "_")
	return header
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if trim(cell) != "" {
			return false
		}
	}
	return true
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
