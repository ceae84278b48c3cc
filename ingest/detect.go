package ingest

import "strings"

// Field is a logical product attribute that ingestion tries to populate
// regardless of the source spreadsheet's column names.
type Field string

const (
	FieldName         Field = "name"
	FieldCategory     Field = "category"
	FieldPrice        Field = "price"
	FieldListPrice    Field = "listPrice"
	FieldStock        Field = "stock"
	FieldBarcode      Field = "barcode"
	FieldManufacturer Field = "manufacturer"
)

// Fields lists every logical field in detection priority order.
var Fields = []Field{
	FieldName,
	FieldCategory,
	FieldPrice,
	FieldListPrice,
	FieldStock,
	FieldBarcode,
	FieldManufacturer,
}

// synonyms are already in normalized form. Order inside a list does not affect
// the result: headers are scanned left to right and the first header matching
// any synonym wins.
var synonyms = map[Field][]string{
	FieldName:         {"nombre", "name", "producto", "product", "articulo", "article", "item", "descripcion", "description"},
	FieldCategory:     {"categoria", "category", "familia", "family", "seccion", "section", "grupo", "tipo"},
	FieldPrice:        {"precio", "price", "coste", "cost", "precioc", "pc"},
	FieldListPrice:    {"pvp", "preciov", "pv", "precioventa", "venta", "sale", "retail"},
	FieldStock:        {"stock", "inventario", "inventory", "cantidad", "existencias", "disponible", "qty", "quantity", "unidades"},
	FieldBarcode:      {"codigobarras", "barcode", "ean", "gtin", "upc", "codigo", "code", "cn"},
	FieldManufacturer: {"laboratorio", "marca", "brand", "fabricante", "manufacturer", "proveedor"},
}

// Synonyms shorter than this only match a header that is exactly equal to
// them. "pc" would otherwise match "descripcion" and "cn" would match "tecnico".
const minSubstringLen = 3

// OverlapPolicy decides whether a single header may satisfy several fields.
type OverlapPolicy int

const (
	// ClaimOnce assigns every header to at most one field, in field priority order.
	ClaimOnce OverlapPolicy = iota
	// ShareHeaders lets a header satisfy every field whose synonyms it matches.
	ShareHeaders
)

// ColumnMapping maps a logical field to the original header text that was
// detected for it. Undetected fields are absent.
type ColumnMapping map[Field]string

// Has reports whether the field was detected.
func (m ColumnMapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Header returns the detected header for f.
func (m ColumnMapping) Header(f Field) (string, bool) {
	h, ok := m[f]
	return h, ok
}

// Detector matches normalized headers against the synonym table.
type Detector struct {
	Policy OverlapPolicy
}

// DetectColumns runs detection with the default ClaimOnce policy.
func DetectColumns(headers []string) ColumnMapping {
	return Detector{}.Detect(headers)
}

// Detect builds the column mapping for a header row. Fields are evaluated in
// the order of Fields and headers in their original order, so the result is a
// pure function of the input.
func (d Detector) Detect(headers []string) ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = Normalize(h)
	}

	claimed := make([]bool, len(headers))
	mapping := make(ColumnMapping)
	for _, field := range Fields {
		for i, n := range normalized {
			if n == "" {
				continue
			}
			if d.Policy == ClaimOnce && claimed[i] {
				continue
			}
			if matchesAny(n, synonyms[field]) {
				mapping[field] = headers[i]
				claimed[i] = true
				break
			}
		}
	}
	return mapping
}

func matchesAny(normalized string, patterns []string) bool {
	for _, p := range patterns {
		if len(p) < minSubstringLen {
			if normalized == p {
				return true
			}
			continue
		}
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
