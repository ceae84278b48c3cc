package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"catalog-service/models"
	"catalog-service/sheet"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Validation constants
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPageNumber   = 1000000
)

// ListQuery holds the product listing query parameters
type ListQuery struct {
	StoreID    string `form:"store_id"`
	FarmaciaID string `form:"farmacia_id"`
	Category   string `form:"category" validate:"max=100"`
	Search     string `form:"search" validate:"max=100"`
	Page       int    `form:"page" validate:"gte=0,lte=1000000"`
	PerPage    int    `form:"perPage" validate:"gte=0"`
}

// Filter converts the query to a repository filter.
func (q *ListQuery) Filter() models.ProductFilter {
	return models.ProductFilter{
		StoreID:  q.StoreID,
		Category: q.Category,
		Search:   q.Search,
		Page:     q.Page,
		PerPage:  q.PerPage,
	}
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate       *validator.Validate
	maxUploadBytes int64
}

func NewRequestValidator(maxUploadBytes int64) *RequestValidator {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &RequestValidator{
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// ParseListQuery binds and validates the listing query. The store id is not
// resolved here.
func (rv *RequestValidator) ParseListQuery(c *gin.Context) (*ListQuery, error) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, errors.New("invalid query parameters")
	}
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	if err := rv.validate.Struct(&q); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = DefaultPageSize
	}
	if q.PerPage > MaxPageSize {
		q.PerPage = MaxPageSize
	}
	if q.StoreID == "" {
		q.StoreID = q.FarmaciaID
	}
	return &q, nil
}

// IsValidSpreadsheet checks the part's content type, then its extension
func (rv *RequestValidator) IsValidSpreadsheet(file *multipart.FileHeader) bool {
	return sheet.IsSpreadsheet(file.Header.Get("Content-Type"), file.Filename)
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > rv.maxUploadBytes {
		return fmt.Errorf("file too large (max %dMB)", rv.maxUploadBytes/(1024*1024))
	}
	return nil
}

// StoreParam reads store_id, or its farmacia_id alias, from the form or the query.
func StoreParam(c *gin.Context) string {
	for _, key := range []string{"store_id", "farmacia_id"} {
		if v := strings.TrimSpace(c.PostForm(key)); v != "" {
			return v
		}
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			return v
		}
	}
	return ""
}
