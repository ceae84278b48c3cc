package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a spreadsheet header into the form used for synonym matching:
// lower-cased, trimmed, accents removed and only ASCII letters and digits kept.
// "Código de Barras" and "codigodebarras" normalize to the same string.
func Normalize(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	if s == "" {
		return ""
	}

	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
