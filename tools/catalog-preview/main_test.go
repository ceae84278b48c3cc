package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"catalog-service/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		r := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "catalogo.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func execute(t *testing.T, args ...string) (previewOutput, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	var res previewOutput
	if err == nil {
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	}
	return res, err
}

func TestPreviewCommand(t *testing.T) {
	path := writeWorkbook(t,
		[]interface{}{"Producto", "Precio Venta", "Stock", "EAN"},
		[]interface{}{"Ibuprofeno", "3,95", 40, "8470001234567"},
		[]interface{}{"", "1", 1, "1"},
	)

	res, err := execute(t, path)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "Precio Venta", res.ColumnMap[ingest.FieldPrice])
	assert.Empty(t, res.ColumnMap[ingest.FieldListPrice])
	assert.Equal(t, 2, res.TotalRows)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Ibuprofeno", res.Records[0].Name)
	assert.Equal(t, []ingest.IngestionError{{Row: 3, Message: ingest.RowErrorMessage}}, res.Errors)

	res, err = execute(t, "--shared-headers", "--headers-only", path)
	require.NoError(t, err)
	assert.Equal(t, "Precio Venta", res.ColumnMap[ingest.FieldListPrice])
	assert.Empty(t, res.Records)
}

func TestPreviewCommandInvalidMapping(t *testing.T) {
	path := writeWorkbook(t, []interface{}{"Precio"}, []interface{}{"1"})

	res, err := execute(t, path)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ingest.MissingNameColumnMessage, res.Error)
	assert.Empty(t, res.Records)
}

func TestPreviewCommandErrors(t *testing.T) {
	_, err := execute(t)
	assert.Error(t, err)

	_, err = execute(t, filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
