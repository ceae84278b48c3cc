package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12,50", 12.5, true},
		{"12.50", 12.5, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"1.234.567", 1234567, true},
		{"€ 3,95", 3.95, true},
		{"3,95 €", 3.95, true},
		{"$10", 10, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-1", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "input %q", tt.in)
		}
	}
}

func TestParseStock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"40", 40, true},
		{" 7 ", 7, true},
		{"40.0", 40, true},
		{"12,9", 12, true},
		{"0", 0, true},
		{"-3", 0, false},
		{"2147483647", 2147483647, true},
		{"3000000000", 0, false},
		{"3000000000.0", 0, false},
		{"muchos", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseStock(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestApplyDefaults(t *testing.T) {
	p := ApplyDefaults(ProductRecord{Row: 2, Name: "Gasas"}, "")
	assert.Equal(t, PreparedProduct{Row: 2, Name: "Gasas", Category: DefaultCategory, Active: true}, p)

	price := 4.5
	p = ApplyDefaults(ProductRecord{Name: "Tiritas", Price: &price}, "General")
	assert.Equal(t, "General", p.Category)
	assert.Equal(t, 4.5, p.Price)
	assert.Equal(t, 4.5, p.ListPrice)

	list, cat, code, stock := 6.0, "Botiquín", "842", 9
	p = ApplyDefaults(ProductRecord{Name: "Venda", Price: &price, ListPrice: &list, Category: &cat, Barcode: &code, Stock: &stock}, "General")
	assert.Equal(t, 6.0, p.ListPrice)
	assert.Equal(t, "Botiquín", p.Category)
	assert.Equal(t, "842", p.Barcode)
	assert.Equal(t, 9, p.Stock)
}
