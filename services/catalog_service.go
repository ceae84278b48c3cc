package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"catalog-service/ingest"
	"catalog-service/models"
	awspkg "catalog-service/pkg/aws"
	"catalog-service/repository"
	"catalog-service/sheet"

	"go.uber.org/zap"
)

const (
	msgMissingFile     = "No file uploaded"
	msgMissingStore    = "store_id is required"
	msgUnsupportedFile = "Invalid file type. Only Excel files (.xlsx, .xls) are allowed"
	msgEmptySheet      = "The spreadsheet is empty"
	msgNoDataRows      = "The spreadsheet has no data rows"
	msgNoValidProducts = "No valid products found in the file"
	msgReadFailed      = "Failed to read the spreadsheet"
)

// UploadInput is a spreadsheet submitted for one store.
type UploadInput struct {
	StoreID     string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// IngestionSummary is the outcome of a completed import.
type IngestionSummary struct {
	Inserted  int
	Updated   int
	Total     int
	TotalRows int
	Errors    []ingest.IngestionError
	ColumnMap ingest.ColumnMapping
}

// PreviewResult shows how a file would be read without writing anything.
type PreviewResult struct {
	ColumnMap ingest.ColumnMapping    `json:"columnMap"`
	Valid     bool                    `json:"valid"`
	Error     string                  `json:"error,omitempty"`
	Records   []ingest.ProductRecord  `json:"records"`
	Errors    []ingest.IngestionError `json:"errors"`
	TotalRows int                     `json:"totalRows"`
}

// CatalogServiceConfig configures column detection and row handling.
type CatalogServiceConfig struct {
	Policy         ingest.OverlapPolicy
	ExemptFirstRow bool
}

// CatalogService runs the spreadsheet pipeline: decode, detect, validate,
// map and reconcile.
type CatalogService struct {
	repo       repository.ProductRepo
	reconciler *Reconciler
	detector   ingest.Detector
	rowOpts    ingest.Options
	cache      CacheInvalidator
	events     *EventPublisher
	metrics    ImportMetrics
	logger     *zap.Logger
}

func NewCatalogService(repo repository.ProductRepo, reconciler *Reconciler, cfg CatalogServiceConfig, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:       repo,
		reconciler: reconciler,
		detector:   ingest.Detector{Policy: cfg.Policy},
		rowOpts:    ingest.Options{ExemptFirstRow: cfg.ExemptFirstRow},
		logger:     logger,
	}
}

// WithCache sets the cache invalidated after a write.
func (s *CatalogService) WithCache(c CacheInvalidator) *CatalogService {
	s.cache = c
	return s
}

func (s *CatalogService) WithEvents(p *EventPublisher) *CatalogService {
	s.events = p
	return s
}

func (s *CatalogService) WithMetrics(m ImportMetrics) *CatalogService {
	s.metrics = m
	return s
}

// Ingest imports a spreadsheet into the store's catalog. Structural problems
// fail the whole upload; row problems are collected in the summary.
func (s *CatalogService) Ingest(ctx context.Context, in UploadInput) (*IngestionSummary, error) {
	return s.ingest(ctx, in, "")
}

func (s *CatalogService) ingest(ctx context.Context, in UploadInput, jobID string) (*IngestionSummary, error) {
	start := time.Now()

	table, mapping, err := s.read(in)
	if err != nil {
		return nil, err
	}

	batch := s.rowOpts.ProcessRows(table.Rows, mapping)
	if len(batch.Records) == 0 {
		return nil, &ServiceError{
			StatusCode: http.StatusBadRequest,
			Message:    msgNoValidProducts,
			RowErrors:  batch.Errors,
			ColumnMap:  mapping,
		}
	}

	res := s.reconciler.Reconcile(ctx, in.StoreID, batch.Records)

	summary := &IngestionSummary{
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Total:     res.Inserted + res.Updated,
		TotalRows: len(table.Rows),
		Errors:    append(append([]ingest.IngestionError{}, batch.Errors...), res.Errors...),
		ColumnMap: mapping,
	}

	s.logger.Info("catalog import finished",
		zap.String("store_id", in.StoreID),
		zap.String("file", in.FileName),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if summary.Total > 0 {
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Error("failed to invalidate product cache after import", zap.Error(err))
			}
		}
		s.events.CatalogImported(ctx, in.StoreID, jobID, *summary)
	}
	s.recordMetrics(ctx, summary, time.Since(start))

	return summary, nil
}

// Preview decodes and maps a file without touching the repository.
func (s *CatalogService) Preview(ctx context.Context, in UploadInput) (*PreviewResult, error) {
	if in.Reader == nil {
		return nil, badRequest(msgMissingFile)
	}
	if !sheet.IsSpreadsheet(in.ContentType, in.FileName) {
		return nil, badRequest(msgUnsupportedFile)
	}
	table, err := s.decode(in.Reader)
	if err != nil {
		return nil, err
	}

	mapping := s.detector.Detect(table.Headers)
	check := ingest.ValidateMapping(mapping)
	out := &PreviewResult{
		ColumnMap: mapping,
		Valid:     check.Valid,
		Error:     check.Error,
		Records:   []ingest.ProductRecord{},
		Errors:    []ingest.IngestionError{},
		TotalRows: len(table.Rows),
	}
	if !check.Valid {
		return out, nil
	}

	batch := s.rowOpts.ProcessRows(table.Rows, mapping)
	out.Records = batch.Records
	out.Errors = batch.Errors
	return out, nil
}

// ListProducts returns one page of a store's active products.
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	if filter.StoreID == "" {
		return nil, 0, badRequest(msgMissingStore)
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list products", zap.String("store_id", filter.StoreID), zap.Error(err))
		return nil, 0, internalError("Failed to fetch products")
	}
	return products, total, nil
}

// read runs every whole-file check in order and stops at the first failure.
func (s *CatalogService) read(in UploadInput) (*sheet.Table, ingest.ColumnMapping, error) {
	if in.Reader == nil {
		return nil, nil, badRequest(msgMissingFile)
	}
	if in.StoreID == "" {
		return nil, nil, badRequest(msgMissingStore)
	}
	if !sheet.IsSpreadsheet(in.ContentType, in.FileName) {
		return nil, nil, badRequest(msgUnsupportedFile)
	}

	table, err := s.decode(in.Reader)
	if err != nil {
		return nil, nil, err
	}
	if len(table.Rows) == 0 {
		return nil, nil, badRequest(msgNoDataRows)
	}

	mapping := s.detector.Detect(table.Headers)
	if check := ingest.ValidateMapping(mapping); !check.Valid {
		return nil, nil, &ServiceError{
			StatusCode: http.StatusBadRequest,
			Message:    check.Error,
			ColumnMap:  mapping,
		}
	}
	return table, mapping, nil
}

func (s *CatalogService) decode(r io.Reader) (*sheet.Table, error) {
	table, err := sheet.Decode(r)
	if errors.Is(err, sheet.ErrEmptySheet) {
		return nil, badRequest(msgEmptySheet)
	}
	if err != nil {
		s.logger.Warn("failed to decode spreadsheet", zap.Error(err))
		return nil, internalError(msgReadFailed)
	}
	return table, nil
}

func (s *CatalogService) recordMetrics(ctx context.Context, summary *IngestionSummary, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	dims := map[string]string{"Service": "catalog-service"}
	_ = s.metrics.RecordCountN(ctx, awspkg.MetricProductsCreated, summary.Inserted, dims)
	_ = s.metrics.RecordCountN(ctx, awspkg.MetricProductsUpdated, summary.Updated, dims)
	_ = s.metrics.RecordCountN(ctx, awspkg.MetricImportRowErrors, len(summary.Errors), dims)
	_ = s.metrics.RecordLatency(ctx, awspkg.MetricImportLatency, elapsed, dims)
}
