package sheet

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"golang.org/x/text/encoding/charmap"
)

// oleSignature opens every OLE2 compound file, which is the container of
// BIFF (.xls) workbooks.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// readXLS returns the name and cell text of the first sheet of a BIFF
// workbook. Rows the file does not store come back empty so row numbers
// stay aligned with the sheet. Formula cells are not evaluated and read as
// blank.
func readXLS(data []byte) (name string, rows [][]string, err error) {
	// The reader indexes into the raw stream and panics on truncated files.
	defer func() {
		if r := recover(); r != nil {
			name, rows, err = "", nil, fmt.Errorf("failed to open workbook: malformed xls file: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if wb.GetNumberSheets() == 0 {
		return "", nil, ErrEmptySheet
	}
	sheet, err := wb.GetSheet(0)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	for _, row := range sheet.GetRows() {
		cols := row.GetCols()
		values := make([]string, len(cols))
		for i, cell := range cols {
			values[i] = latin1(cell.GetString())
		}
		rows = append(rows, values)
	}
	return latin1(sheet.GetName()), rows, nil
}

// latin1 repairs BIFF8 "compressed" strings. They hold the low byte of
// each UTF-16 unit, which the reader hands back as raw ISO-8859-1.
func latin1(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
