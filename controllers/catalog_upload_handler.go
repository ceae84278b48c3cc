package controllers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "catalog-service/common/errors"
	"catalog-service/middleware"
	"catalog-service/models"
	"catalog-service/services"
	"catalog-service/sheet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TemplateFileName is the download name of the catalog template.
const TemplateFileName = "plantilla_productos.xlsx"

// CatalogUploadHandler handles spreadsheet imports
type CatalogUploadHandler struct {
	catalog   CatalogServiceAPI
	jobs      ImportJobsAPI
	validator *RequestValidator
	timeout   time.Duration
}

// NewCatalogUploadHandler wires the handler. jobs may be nil, in which case
// async uploads are refused.
func NewCatalogUploadHandler(catalog CatalogServiceAPI, jobs ImportJobsAPI, cfg Config) *CatalogUploadHandler {
	cfg = cfg.withDefaults()
	return &CatalogUploadHandler{
		catalog:   catalog,
		jobs:      jobs,
		validator: NewRequestValidator(cfg.MaxUploadBytes),
		timeout:   cfg.ContextTimeout,
	}
}

// Upload imports a spreadsheet into the caller's store
func (h *CatalogUploadHandler) Upload(c *gin.Context) {
	file, err := h.getAndValidateFile(c)
	if err != nil {
		h.uploadFailed(c, err)
		return
	}

	storeID, err := middleware.ResolveStoreID(c, StoreParam(c))
	if err != nil {
		h.uploadFailed(c, apperrors.ErrForbidden.Wrap(err))
		return
	}

	fileHandle, err := file.Open()
	if err != nil {
		h.uploadFailed(c, apperrors.New(http.StatusInternalServerError, "Failed to open file", err))
		return
	}
	defer fileHandle.Close()

	in := services.UploadInput{
		StoreID:     storeID,
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Reader:      fileHandle,
	}

	if strings.ToLower(strings.TrimSpace(c.Query("async"))) == "true" {
		h.handleAsyncImport(c, in)
		return
	}
	h.handleSyncImport(c, in)
}

// Preview runs detection and row mapping without saving anything
func (h *CatalogUploadHandler) Preview(c *gin.Context) {
	file, err := h.getAndValidateFile(c)
	if err != nil {
		h.uploadFailed(c, err)
		return
	}

	fileHandle, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer fileHandle.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.catalog.Preview(ctx, services.UploadInput{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Reader:      fileHandle,
	})
	if err != nil {
		h.uploadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// JobStatus returns the state of an async import
func (h *CatalogUploadHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		_ = c.Error(apperrors.New(http.StatusNotFound, "Job not found", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := h.jobs.Status(ctx, c.Param("id"))
	if err != nil {
		var svcErr *services.ServiceError
		if errors.As(err, &svcErr) {
			_ = c.Error(apperrors.New(svcErr.StatusCode, svcErr.Message, err))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Template streams an empty workbook with the recognised headers
func (h *CatalogUploadHandler) Template(c *gin.Context) {
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf); err != nil {
		zap.L().Error("Failed to build catalog template", zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+TemplateFileName+`"`)
	c.Data(http.StatusOK, sheet.MimeXLSX, buf.Bytes())
}

// Private helper methods

func (h *CatalogUploadHandler) getAndValidateFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, apperrors.ErrMissingFile
	}

	if !h.validator.IsValidSpreadsheet(file) {
		return nil, apperrors.ErrUnsupportedFile
	}

	if err := h.validator.ValidateFileSize(file); err != nil {
		return nil, apperrors.New(http.StatusRequestEntityTooLarge, err.Error(), nil)
	}

	return file, nil
}

func (h *CatalogUploadHandler) handleSyncImport(c *gin.Context, in services.UploadInput) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	summary, err := h.catalog.Ingest(ctx, in)
	if err != nil {
		h.uploadFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, summary.Response())
}

func (h *CatalogUploadHandler) handleAsyncImport(c *gin.Context, in services.UploadInput) {
	if h.jobs == nil {
		h.uploadFailed(c, apperrors.New(http.StatusServiceUnavailable, "Async import is not configured", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	job, err := h.jobs.Submit(ctx, in)
	if err != nil {
		h.uploadFailed(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Import queued for processing",
	})
}

// uploadFailed renders any upload failure in the upload response shape.
func (h *CatalogUploadHandler) uploadFailed(c *gin.Context, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.StatusCode, services.FailureResponse(svcErr))
		return
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code, models.UploadResponse{Errors: []string{}, Error: appErr.Message})
		return
	}

	zap.L().Error("Catalog upload failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, models.UploadResponse{Errors: []string{}, Error: "Internal server error"})
}
