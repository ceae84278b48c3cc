package sheet

import (
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateSheet is the worksheet name used by the downloadable template.
const TemplateSheet = "Productos"

// TemplateHeaders is the canonical header row; every header maps onto a distinct field.
var TemplateHeaders = []string{"Nombre", "Categoría", "Precio", "PVP", "Stock", "Código de barras", "Laboratorio"}

var templateExample = []interface{}{"Ibuprofeno 400mg 20 comprimidos", "Analgésicos", 2.95, 3.95, 40, "8470001234567", "Cinfa"}

// WriteTemplate writes an .xlsx catalog template with a styled header row and one example line.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2E7D32"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	for i, h := range TemplateHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(TemplateSheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, headerStyle); err != nil {
			return err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(TemplateSheet, col, col, 22); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(TemplateSheet, "A2", &templateExample); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}
