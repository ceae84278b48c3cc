package repository

import (
	"context"
	"errors"
	"strings"

	"catalog-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepo on Postgres.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByBarcode(ctx context.Context, storeID, barcode string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND barcode = ?", storeID, barcode).
		Order("created_at ASC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// Update writes only the given columns.
func (r *GormProductRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("store_id = ? AND active = ?", filter.StoreID, true)
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if s := strings.TrimSpace(filter.Search); s != "" {
			q = q.Where("name ILIKE ?", "%"+s+"%")
		}
		return q
	}

	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, perPage := normalizePage(filter.Page, filter.PerPage)
	if err := scoped().
		Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// EnsureSchema migrates the products table.
func (r *GormProductRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Product{})
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
