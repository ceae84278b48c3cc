package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-service/ingest"
	"catalog-service/models"
	"catalog-service/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPersistTimeout bounds every single repository call made during reconciliation.
const DefaultPersistTimeout = 5 * time.Second

// ReconcileResult counts what happened to the records of one import.
type ReconcileResult struct {
	Inserted int
	Updated  int
	Errors   []ingest.IngestionError
}

// ReconcilerConfig holds the defaults applied before persistence.
type ReconcilerConfig struct {
	DefaultCategory string
	PersistTimeout  time.Duration
}

// Reconciler upserts mapped records into a store's catalog using
// (store_id, barcode) as the natural key. Records without a barcode are
// always inserted.
type Reconciler struct {
	repo            repository.ProductRepo
	validate        *validator.Validate
	defaultCategory string
	timeout         time.Duration
	logger          *zap.Logger
}

func NewReconciler(repo repository.ProductRepo, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = ingest.DefaultCategory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		repo:            repo,
		validate:        validator.New(),
		defaultCategory: cfg.DefaultCategory,
		timeout:         cfg.PersistTimeout,
		logger:          logger,
	}
}

// Reconcile persists records one by one in row order. A failing record is
// reported and the batch moves on. Barcodes written earlier in the same
// batch resolve from memory, so a store whose barcode index lags its writes
// still sees them.
func (r *Reconciler) Reconcile(ctx context.Context, storeID string, records []ingest.ProductRecord) ReconcileResult {
	res := ReconcileResult{Errors: []ingest.IngestionError{}}
	written := make(map[string]uuid.UUID)

	for _, rec := range records {
		p := ingest.ApplyDefaults(rec, r.defaultCategory)
		if err := r.validate.Struct(p); err != nil {
			res.Errors = append(res.Errors, ingest.IngestionError{
				Row:     p.Row,
				Message: fmt.Sprintf("invalid data for %s: %s", p.Name, describeValidation(err)),
			})
			continue
		}

		var existing *uuid.UUID
		if id, ok := written[p.Barcode]; ok {
			existing = &id
		} else if p.Barcode != "" {
			found, err := r.lookup(ctx, storeID, p.Barcode)
			switch {
			case err == nil:
				existing = &found.ID
			case !errors.Is(err, repository.ErrNotFound):
				r.logger.Warn("barcode lookup failed", zap.String("store_id", storeID), zap.Int("row", p.Row), zap.Error(err))
				res.Errors = append(res.Errors, ingest.IngestionError{
					Row:     p.Row,
					Message: fmt.Sprintf("failed to look up %s: %v", p.Name, err),
				})
				continue
			}
		}

		if existing != nil {
			if err := r.update(ctx, *existing, p); err != nil {
				res.Errors = append(res.Errors, ingest.IngestionError{
					Row:     p.Row,
					Message: fmt.Sprintf("failed to update %s: %v", p.Name, err),
				})
				continue
			}
			written[p.Barcode] = *existing
			res.Updated++
			continue
		}

		id, err := r.insert(ctx, storeID, p)
		if err != nil {
			res.Errors = append(res.Errors, ingest.IngestionError{
				Row:     p.Row,
				Message: fmt.Sprintf("failed to insert %s: %v", p.Name, err),
			})
			continue
		}
		if p.Barcode != "" {
			written[p.Barcode] = id
		}
		res.Inserted++
	}
	return res
}

func (r *Reconciler) lookup(ctx context.Context, storeID, barcode string) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.repo.FindByBarcode(ctx, storeID, barcode)
}

// update writes the imported fields only. Manufacturer is left untouched
// when the row has none.
func (r *Reconciler) update(ctx context.Context, id uuid.UUID, p ingest.PreparedProduct) error {
	updates := map[string]interface{}{
		"name":       p.Name,
		"category":   p.Category,
		"price":      p.Price,
		"list_price": p.ListPrice,
		"stock":      p.Stock,
		"active":     p.Active,
	}
	if p.Manufacturer != nil {
		updates["manufacturer"] = *p.Manufacturer
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.repo.Update(ctx, id, updates)
}

func (r *Reconciler) insert(ctx context.Context, storeID string, p ingest.PreparedProduct) (uuid.UUID, error) {
	product := &models.Product{
		StoreID:      storeID,
		Name:         p.Name,
		Category:     p.Category,
		Price:        p.Price,
		ListPrice:    p.ListPrice,
		Stock:        p.Stock,
		Manufacturer: p.Manufacturer,
		Active:       p.Active,
	}
	if p.Barcode != "" {
		barcode := p.Barcode
		product.Barcode = &barcode
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.repo.Create(ctx, product); err != nil {
		return uuid.Nil, err
	}
	return product.ID, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
	}
	return err.Error()
}
