package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalog-service/ingest"
)

// ErrEmptySheet is returned when the workbook has no sheet or no header row.
var ErrEmptySheet = errors.New("the spreadsheet is empty")

// Table is the first worksheet of a workbook split into its header row and data rows.
type Table struct {
	Sheet     string
	Headers   []string
	HeaderRow int
	Rows      []ingest.Row
}

// Decode reads an .xlsx workbook, or a legacy .xls one when the content
// starts with the OLE2 signature. The first non-blank row of the first sheet
// is the header row; fully blank rows below it are skipped. Every data row
// keeps its real spreadsheet row number.
func Decode(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}

	var name string
	var rows [][]string
	if bytes.HasPrefix(data, oleSignature) {
		name, rows, err = readXLS(data)
	} else {
		name, rows, err = readXLSX(data)
	}
	if err != nil {
		return nil, err
	}
	return buildTable(name, rows)
}

func readXLSX(data []byte) (string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return sheets[0], rows, nil
}

func buildTable(name string, rows [][]string) (*Table, error) {
	t := &Table{Sheet: name}
	headerIdx := -1
	for i, row := range rows {
		if !blank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptySheet
	}

	t.HeaderRow = headerIdx + 1
	keys := headerKeys(rows[headerIdx])
	for _, k := range keys {
		if k != "" {
			t.Headers = append(t.Headers, k)
		}
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		cells := make(map[string]string, len(t.Headers))
		for col, value := range rows[i] {
			if col >= len(keys) || keys[col] == "" {
				continue
			}
			cells[keys[col]] = strings.TrimSpace(value)
		}
		t.Rows = append(t.Rows, ingest.Row{Number: i + 1, Cells: cells})
	}
	return t, nil
}

// headerKeys trims every header and makes repeated ones unique by appending
// _1, _2 and so on. Blank headers stay blank and their columns are dropped.
func headerKeys(row []string) []string {
	keys := make([]string, len(row))
	used := make(map[string]bool, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		key := h
		for n := 1; used[key]; n++ {
			key = fmt.Sprintf("%s_%d", h, n)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
