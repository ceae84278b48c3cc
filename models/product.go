package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry owned by a single store (pharmacy).
// (store_id, barcode) is the natural key used by catalog imports; it is
// unique among live rows that carry a barcode.
type Product struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StoreID      string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_products_store_barcode,priority:1,where:barcode IS NOT NULL AND deleted_at IS NULL" json:"store_id"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Category     string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Price        float64        `gorm:"not null" json:"price"`
	ListPrice    float64        `gorm:"not null" json:"list_price"`
	Stock        int            `gorm:"not null" json:"stock"`
	Barcode      *string        `gorm:"type:varchar(64);uniqueIndex:idx_products_store_barcode,priority:2" json:"barcode,omitempty"`
	Manufacturer *string        `gorm:"type:varchar(255)" json:"manufacturer,omitempty"`
	Active       bool           `gorm:"not null" json:"active"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	StoreID  string
	Category string
	Search   string
	Page     int
	PerPage  int
}
