package sheet

import (
	"path/filepath"
	"strings"
)

const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS  = "application/vnd.ms-excel"
)

// IsSpreadsheet accepts the Excel MIME types and falls back to the file
// extension, since browsers often send application/octet-stream.
func IsSpreadsheet(contentType, filename string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == MimeXLSX || ct == MimeXLS {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}
