package services

import (
	"catalog-service/ingest"
	"catalog-service/models"
)

// Response renders a summary as the upload response body.
func (s *IngestionSummary) Response() models.UploadResponse {
	return models.UploadResponse{
		Success:   true,
		Inserted:  s.Inserted,
		Updated:   s.Updated,
		Total:     s.Total,
		Errors:    RowMessages(s.Errors),
		ColumnMap: ColumnMapJSON(s.ColumnMap),
	}
}

// FailureResponse renders a rejected upload.
func FailureResponse(err *ServiceError) models.UploadResponse {
	return models.UploadResponse{
		Success:   false,
		Errors:    RowMessages(err.RowErrors),
		ColumnMap: ColumnMapJSON(err.ColumnMap),
		Error:     err.Message,
	}
}

// RowMessages formats errors as "Row N: message". Never nil.
func RowMessages(errs []ingest.IngestionError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.String())
	}
	return out
}

// ColumnMapJSON converts a mapping to a plain string map, nil when empty.
func ColumnMapJSON(m ingest.ColumnMapping) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for f, h := range m {
		out[string(f)] = h
	}
	return out
}
