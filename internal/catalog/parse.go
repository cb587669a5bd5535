package catalog

// parse.go decodes uploaded spreadsheets (CSV and XLSX) into the neutral
// ParsedFile shape the pipeline consumes. The importer never touches file
// bytes after this point.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// PreviewRows is how many data rows ParsedFile.Preview retains.
var PreviewRows = 10

// ParsedFile is the decoded form of an uploaded spreadsheet: the header row
// plus every data row keyed by its original column name.
type ParsedFile struct {
	Headers []string
	Rows    []map[string]string
	Preview []map[string]string
}

// ParseFile decodes data according to the file extension.
// ".xlsx" and ".xls" go through excelize; everything else is treated as CSV.
func ParseFile(filename string, data []byte) (*ParsedFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return ParseXLSX(data)
	default:
		return ParseCSV(data)
	}
}

// ParseCSV decodes CSV bytes, sniffing the delimiter from the header line
// (French supplier exports commonly use semicolons).
func ParseCSV(data []byte) (*ParsedFile, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	return fromRecords(records)
}

// ParseXLSX decodes the first sheet of an XLSX workbook.
func ParseXLSX(data []byte) (*ParsedFile, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	return fromRecords(records)
}

// fromRecords converts raw records into a ParsedFile, skipping empty rows.
// The first non-empty record is the header row.
func fromRecords(records [][]string) (*ParsedFile, error) {
	start := 0
	for start < len(records) && isEmptyRow(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, fmt.Errorf("empty file")
	}

	headers := make([]string, 0, len(records[start]))
	for _, h := range records[start] {
		headers = append(headers, CleanCell(h))
	}

	pf := &ParsedFile{Headers: headers}
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		pf.Rows = append(pf.Rows, row)
	}

	if len(pf.Rows) == 0 {
		return nil, fmt.Errorf("no data rows after header")
	}

	n := PreviewRows
	if len(pf.Rows) < n {
		n = len(pf.Rows)
	}
	pf.Preview = pf.Rows[:n]

	return pf, nil
}

// sniffDelimiter inspects the header line and picks the separator that
// appears most often among comma, semicolon and tab.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{c}); n > bestCount {
			best, bestCount = rune(c), n
		}
	}
	return best
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 re-decodes non-UTF-8 input as Latin-1, which is what older
// French supplier exports ship in. Latin-1 maps every byte, so this cannot
// fail and accented characters come through intact.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
