package ingest

// MissingNameColumnMessage is returned when no header could be mapped to the product name.
const MissingNameColumnMessage = "could not detect the product name column; the spreadsheet must contain a name/product column"

// MappingValidation is the outcome of ValidateMapping.
type MappingValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ValidateMapping gates ingestion: a mapping is usable only when the name field was detected.
func ValidateMapping(m ColumnMapping) MappingValidation {
	if !m.Has(FieldName) {
		return MappingValidation{Valid: false, Error: MissingNameColumnMessage}
	}
	return MappingValidation{Valid: true}
}
