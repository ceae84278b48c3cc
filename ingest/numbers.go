package ingest

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimal parses a price cell. Both "12,50" and "12.50" yield 12.5; when
// both separators appear the right-most one is the decimal point. Currency
// symbols and whitespace are ignored. Negative, NaN and infinite values are
// rejected.
func ParseDecimal(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '+', r == 'e', r == 'E':
			return r
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r):
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseStock parses a stock cell as a non-negative integer. Spreadsheet
// exports often write whole numbers as "40.0"; decimals truncate toward zero.
func ParseStock(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return n, true
	}
	f, ok := ParseDecimal(s)
	if !ok || f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
