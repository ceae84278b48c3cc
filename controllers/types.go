package controllers

import (
	"context"
	"time"

	"catalog-service/models"
	"catalog-service/services"
)

// Config holds controller configuration
type Config struct {
	CacheTTL       time.Duration
	ContextTimeout time.Duration
	MaxUploadBytes int64
}

// Default configuration values
const (
	DefaultCacheTTL       = 10 * time.Minute
	DefaultContextTimeout = 60 * time.Second
	DefaultMaxUploadBytes = 20 * 1024 * 1024
)

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.ContextTimeout <= 0 {
		c.ContextTimeout = DefaultContextTimeout
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return c
}

// CatalogServiceAPI defines the catalog operations used by the handlers
type CatalogServiceAPI interface {
	Ingest(ctx context.Context, in services.UploadInput) (*services.IngestionSummary, error)
	Preview(ctx context.Context, in services.UploadInput) (*services.PreviewResult, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
}

// ImportJobsAPI defines the async import operations
type ImportJobsAPI interface {
	Submit(ctx context.Context, in services.UploadInput) (*models.ImportJob, error)
	Status(ctx context.Context, id string) (*models.ImportJob, error)
}
