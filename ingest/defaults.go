package ingest

// DefaultCategory is used when no category is configured.
const DefaultCategory = "Uncategorized"

// PreparedProduct is a record with every default filled in, ready to persist.
type PreparedProduct struct {
	Row          int
	Name         string  `validate:"required,max=255"`
	Category     string  `validate:"required,max=100"`
	Price        float64 `validate:"gte=0"`
	ListPrice    float64 `validate:"gte=0"`
	Stock        int     `validate:"gte=0"`
	Barcode      string  `validate:"max=64"`
	Manufacturer *string `validate:"omitempty,max=255"`
	Active       bool
}

// ApplyDefaults fills absent fields. listPrice falls back to price, then zero.
func ApplyDefaults(rec ProductRecord, defaultCategory string) PreparedProduct {
	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}
	p := PreparedProduct{
		Row:          rec.Row,
		Name:         rec.Name,
		Category:     defaultCategory,
		Manufacturer: rec.Manufacturer,
		Active:       true,
	}
	if rec.Category != nil {
		p.Category = *rec.Category
	}
	if rec.Price != nil {
		p.Price = *rec.Price
	}
	switch {
	case rec.ListPrice != nil:
		p.ListPrice = *rec.ListPrice
	case rec.Price != nil:
		p.ListPrice = *rec.Price
	}
	if rec.Stock != nil {
		p.Stock = *rec.Stock
	}
	if rec.Barcode != nil {
		p.Barcode = *rec.Barcode
	}
	return p
}
