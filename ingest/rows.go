package ingest

import (
	"fmt"
	"strings"
)

// RowErrorMessage is recorded for rows that could not be turned into a product.
const RowErrorMessage = "could not process row (missing name or invalid data)"

// Row is one data row of the sheet keyed by the original header text.
// Number is the 1-based spreadsheet row; zero means unknown.
type Row struct {
	Number int
	Cells  map[string]string
}

// ProductRecord is a mapped row. Nil pointers mean the field was absent or unparseable.
type ProductRecord struct {
	Row          int      `json:"row"`
	Name         string   `json:"name"`
	Category     *string  `json:"category,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	ListPrice    *float64 `json:"listPrice,omitempty"`
	Stock        *int     `json:"stock,omitempty"`
	Barcode      *string  `json:"barcode,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
}

// IngestionError ties a message to a spreadsheet row.
type IngestionError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e IngestionError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

func (e IngestionError) Error() string { return e.String() }

// Options tune row processing.
type Options struct {
	// ExemptFirstRow drops the first data row silently when it has no name
	// instead of reporting it. Off by default.
	ExemptFirstRow bool
}

// BatchResult holds the records and errors produced from a batch of rows.
type BatchResult struct {
	Records []ProductRecord  `json:"records"`
	Errors  []IngestionError `json:"errors"`
}

// ProcessRows maps rows with default options.
func ProcessRows(rows []Row, mapping ColumnMapping) BatchResult {
	return Options{}.ProcessRows(rows, mapping)
}

// ProcessRows converts every row into a record or an error, never both.
func (o Options) ProcessRows(rows []Row, mapping ColumnMapping) BatchResult {
	res := BatchResult{
		Records: make([]ProductRecord, 0, len(rows)),
		Errors:  []IngestionError{},
	}

	for i, row := range rows {
		number := row.Number
		if number <= 0 {
			number = i + 2
		}

		rec, ok := MapRow(row, mapping)
		if !ok {
			if o.ExemptFirstRow && i == 0 {
				continue
			}
			res.Errors = append(res.Errors, IngestionError{Row: number, Message: RowErrorMessage})
			continue
		}
		rec.Row = number
		res.Records = append(res.Records, rec)
	}
	return res
}

// MapRow extracts a single record. It reports false when the row has no usable name.
func MapRow(row Row, mapping ColumnMapping) (ProductRecord, bool) {
	name, ok := cell(row, mapping, FieldName)
	if !ok {
		return ProductRecord{}, false
	}

	rec := ProductRecord{Name: name}
	if v, ok := cell(row, mapping, FieldCategory); ok {
		rec.Category = &v
	}
	if v, ok := cell(row, mapping, FieldBarcode); ok {
		rec.Barcode = &v
	}
	if v, ok := cell(row, mapping, FieldManufacturer); ok {
		rec.Manufacturer = &v
	}
	if v, ok := cell(row, mapping, FieldPrice); ok {
		if f, ok := ParseDecimal(v); ok {
			rec.Price = &f
		}
	}
	if v, ok := cell(row, mapping, FieldListPrice); ok {
		if f, ok := ParseDecimal(v); ok {
			rec.ListPrice = &f
		}
	}
	if v, ok := cell(row, mapping, FieldStock); ok {
		if n, ok := ParseStock(v); ok {
			rec.Stock = &n
		}
	}
	return rec, true
}

// cell returns the trimmed, non-blank value under the header mapped to f.
func cell(row Row, mapping ColumnMapping, f Field) (string, bool) {
	header, ok := mapping[f]
	if !ok || row.Cells == nil {
		return "", false
	}
	v := strings.TrimSpace(row.Cells[header])
	if v == "" {
		return "", false
	}
	return v, true
}
