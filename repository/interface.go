package repository

import (
	"context"
	"errors"

	"catalog-service/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no product matches a lookup.
var ErrNotFound = errors.New("record not found")

// ProductRepo defines the operations used by catalog-service.
// Implementations exist for Postgres (gorm) and DynamoDB.
type ProductRepo interface {
	// FindByBarcode returns ErrNotFound when the store has no product with that barcode.
	FindByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	EnsureSchema(ctx context.Context) error
}
