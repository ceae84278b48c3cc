package controllers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	apperrors "catalog-service/common/errors"
	"catalog-service/middleware"
	"catalog-service/models"
	"catalog-service/services"

	"github.com/gin-gonic/gin"
)

// ProductListMeta is the paging block of a product listing.
type ProductListMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type ProductListResponse struct {
	Products []models.Product `json:"products"`
	Meta     ProductListMeta  `json:"meta"`
}

// ProductController serves the imported catalog
type ProductController struct {
	catalog   CatalogServiceAPI
	cache     *CacheManager
	validator *RequestValidator
	timeout   time.Duration
}

func NewProductController(catalog CatalogServiceAPI, cache *CacheManager, cfg Config) *ProductController {
	cfg = cfg.withDefaults()
	return &ProductController{
		catalog:   catalog,
		cache:     cache,
		validator: NewRequestValidator(cfg.MaxUploadBytes),
		timeout:   cfg.ContextTimeout,
	}
}

// GetProducts lists one page of a store's active products
func (pc *ProductController) GetProducts(c *gin.Context) {
	q, err := pc.validator.ParseListQuery(c)
	if err != nil {
		_ = c.Error(apperrors.ErrValidation.Wrap(err))
		return
	}

	storeID, err := middleware.ResolveStoreID(c, q.StoreID)
	if err != nil {
		_ = c.Error(apperrors.ErrForbidden.Wrap(err))
		return
	}
	if storeID == "" {
		_ = c.Error(apperrors.ErrMissingStore)
		return
	}
	q.StoreID = storeID

	ctx, cancel := context.WithTimeout(c.Request.Context(), pc.timeout)
	defer cancel()

	if cached, ok := pc.cache.GetProductList(ctx, q); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	products, total, err := pc.catalog.ListProducts(ctx, q.Filter())
	if err != nil {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) {
			_ = c.Error(apperrors.New(svcErr.StatusCode, svcErr.Message, err))
			return
		}
		_ = c.Error(err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	resp := &ProductListResponse{
		Products: products,
		Meta: ProductListMeta{
			Page:       q.Page,
			PerPage:    q.PerPage,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(q.PerPage))),
		},
	}
	pc.cache.SetProductListAsync(q, resp)
	c.JSON(http.StatusOK, resp)
}
