package sheet

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalog-service/ingest"
)

func workbook(t *testing.T, rows map[string][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, values := range rows {
		v := values
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &v))
	}
	buf := new(bytes.Buffer)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf
}

func TestDecode(t *testing.T) {
	buf := workbook(t, map[string][]interface{}{
		"A1": {"Producto", "Precio", "Stock", "EAN"},
		"A2": {"Ibuprofeno", "3,95", 40, "8470001234567"},
		"A4": {"  Paracetamol ", 2.5},
	})

	table, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", table.Sheet)
	assert.Equal(t, 1, table.HeaderRow)
	assert.Equal(t, []string{"Producto", "Precio", "Stock", "EAN"}, table.Headers)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, "Ibuprofeno", table.Rows[0].Cells["Producto"])
	assert.Equal(t, "3,95", table.Rows[0].Cells["Precio"])
	assert.Equal(t, "40", table.Rows[0].Cells["Stock"])
	assert.Equal(t, "8470001234567", table.Rows[0].Cells["EAN"])

	assert.Equal(t, 4, table.Rows[1].Number)
	assert.Equal(t, "Paracetamol", table.Rows[1].Cells["Producto"])
	assert.Equal(t, "2.5", table.Rows[1].Cells["Precio"])
}

func TestDecodeFeedsPipeline(t *testing.T) {
	buf := workbook(t, map[string][]interface{}{
		"A1": {"Producto", "Precio", "Stock", "EAN"},
		"A2": {"Ibuprofeno", "3,95", 40, "8470001234567"},
		"A3": {"", "1", 1, "1"},
	})
	table, err := Decode(buf)
	require.NoError(t, err)

	mapping := ingest.DetectColumns(table.Headers)
	res := ingest.ProcessRows(table.Rows, mapping)

	require.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Records[0].Row)
	assert.Equal(t, []ingest.IngestionError{{Row: 3, Message: ingest.RowErrorMessage}}, res.Errors)
}

func TestDecodeHeaderEdgeCases(t *testing.T) {
	buf := workbook(t, map[string][]interface{}{
		"B2": {"Nombre", "", "Precio", "Precio"},
		"B3": {"Gasas", "ignored", "1", "2"},
	})

	table, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, 2, table.HeaderRow)
	assert.Equal(t, []string{"Nombre", "Precio", "Precio_1"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 3, table.Rows[0].Number)
	assert.Equal(t, map[string]string{"Nombre": "Gasas", "Precio": "1", "Precio_1": "2"}, table.Rows[0].Cells)
}

func TestDecodeEmptySheet(t *testing.T) {
	buf := workbook(t, nil)
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestDecodeRejectsNonWorkbook(t *testing.T) {
	_, err := Decode(strings.NewReader("name,price\nfoo,1\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptySheet)
}

func TestDecodeLegacyXLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "catalog.xls"))
	require.NoError(t, err)

	table, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "Catálogo", table.Sheet)
	assert.Equal(t, 1, table.HeaderRow)
	assert.Equal(t, []string{"Producto", "Precio", "Stock", "EAN", "Categoría"}, table.Headers)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, ingest.Row{Number: 2, Cells: map[string]string{
		"Producto":  "Ibuprofeno 400",
		"Precio":    "3.95",
		"Stock":     "40",
		"EAN":       "8470001234567",
		"Categoría": "Analgésicos",
	}}, table.Rows[0])
	assert.Equal(t, ingest.Row{Number: 4, Cells: map[string]string{
		"Producto": "Paracetamol 1g",
		"Precio":   "2.5",
		"Stock":    "12",
		"EAN":      "8470007654321",
	}}, table.Rows[1])

	mapping := ingest.DetectColumns(table.Headers)
	assert.Equal(t, "Categoría", mapping[ingest.FieldCategory])
	res := ingest.ProcessRows(table.Rows, mapping)
	require.Len(t, res.Records, 2)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Records[0].Price)
	assert.InDelta(t, 3.95, *res.Records[0].Price, 1e-9)
}

func TestDecodeTruncatedXLS(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "catalog.xls"))
	require.NoError(t, err)

	_, err = Decode(bytes.NewReader(data[:600]))
	assert.Error(t, err)
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet(MimeXLSX, "catalogo.bin"))
	assert.True(t, IsSpreadsheet("application/vnd.ms-excel; charset=binary", ""))
	assert.True(t, IsSpreadsheet("application/octet-stream", "Catalogo.XLSX"))
	assert.True(t, IsSpreadsheet("", "viejo.xls"))
	assert.False(t, IsSpreadsheet("text/csv", "catalogo.csv"))
	assert.False(t, IsSpreadsheet("application/pdf", "catalogo.pdf"))
}

func TestTemplateHeadersDetectEveryField(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteTemplate(buf))

	table, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, TemplateSheet, table.Sheet)
	assert.Equal(t, TemplateHeaders, table.Headers)

	mapping := ingest.DetectColumns(table.Headers)
	for _, f := range ingest.Fields {
		assert.True(t, mapping.Has(f), "field %s", f)
	}

	res := ingest.ProcessRows(table.Rows, mapping)
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Errors)
}
