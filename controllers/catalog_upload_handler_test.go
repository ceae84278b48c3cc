package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	apperrors "catalog-service/common/errors"
	"catalog-service/ingest"
	"catalog-service/middleware"
	"catalog-service/models"
	"catalog-service/services"
	"catalog-service/sheet"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCatalogService struct {
	lastInput   services.UploadInput
	lastBody    []byte
	lastFilter  models.ProductFilter
	ingestCalls int
	listCalls   int
	ingestFn    func(in services.UploadInput) (*services.IngestionSummary, error)
	previewFn   func(in services.UploadInput) (*services.PreviewResult, error)
	listFn      func(filter models.ProductFilter) ([]models.Product, int64, error)
}

func (f *fakeCatalogService) capture(in services.UploadInput) {
	f.lastInput = in
	if in.Reader != nil {
		f.lastBody, _ = io.ReadAll(in.Reader)
	}
}

func (f *fakeCatalogService) Ingest(_ context.Context, in services.UploadInput) (*services.IngestionSummary, error) {
	f.ingestCalls++
	f.capture(in)
	if f.ingestFn != nil {
		return f.ingestFn(in)
	}
	return &services.IngestionSummary{}, nil
}

func (f *fakeCatalogService) Preview(_ context.Context, in services.UploadInput) (*services.PreviewResult, error) {
	f.capture(in)
	if f.previewFn != nil {
		return f.previewFn(in)
	}
	return &services.PreviewResult{}, nil
}

func (f *fakeCatalogService) ListProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	f.listCalls++
	f.lastFilter = filter
	if f.listFn != nil {
		return f.listFn(filter)
	}
	return []models.Product{}, 0, nil
}

type fakeImportJobs struct {
	submitted []services.UploadInput
	submitErr error
	jobs      map[string]*models.ImportJob
}

func (f *fakeImportJobs) Submit(_ context.Context, in services.UploadInput) (*models.ImportJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, in)
	return &models.ImportJob{ID: "job-1", StoreID: in.StoreID, Status: models.ImportStatusPending}, nil
}

func (f *fakeImportJobs) Status(_ context.Context, id string) (*models.ImportJob, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, &services.ServiceError{StatusCode: http.StatusNotFound, Message: "Job not found"}
}

// withIdentity stands in for the auth middleware.
func withIdentity(role, storeID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, "user-1")
		c.Set(middleware.RoleContextKey, role)
		c.Set(middleware.StoreContextKey, storeID)
		c.Next()
	}
}

func newUploadRouter(h *CatalogUploadHandler, role, storeID string) *gin.Engine {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(), withIdentity(role, storeID))
	r.POST("/catalog/upload", h.Upload)
	r.POST("/catalog/preview", h.Preview)
	r.GET("/catalog/uploads/:id", h.JobStatus)
	r.GET("/catalog/template", h.Template)
	return r
}

func multipartRequest(t *testing.T, target, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeUpload(t *testing.T, rec *httptest.ResponseRecorder) models.UploadResponse {
	t.Helper()
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadSync(t *testing.T) {
	svc := &fakeCatalogService{
		ingestFn: func(in services.UploadInput) (*services.IngestionSummary, error) {
			return &services.IngestionSummary{
				Inserted:  3,
				Updated:   1,
				Total:     4,
				Errors:    []ingest.IngestionError{{Row: 4, Message: ingest.RowErrorMessage}},
				ColumnMap: ingest.ColumnMapping{ingest.FieldName: "Producto"},
			}, nil
		},
	}
	router := newUploadRouter(NewCatalogUploadHandler(svc, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", "catalogo.xlsx", sheet.MimeXLSX, []byte("bytes"), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeUpload(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Inserted)
	assert.Equal(t, 1, resp.Updated)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, []string{"Row 4: " + ingest.RowErrorMessage}, resp.Errors)
	assert.Equal(t, map[string]string{"name": "Producto"}, resp.ColumnMap)

	assert.Equal(t, "store-1", svc.lastInput.StoreID)
	assert.Equal(t, "catalogo.xlsx", svc.lastInput.FileName)
	assert.Equal(t, sheet.MimeXLSX, svc.lastInput.ContentType)
	assert.Equal(t, "bytes", string(svc.lastBody))
}

func TestUploadAcceptsFarmaciaAliasForAdmins(t *testing.T) {
	svc := &fakeCatalogService{}
	router := newUploadRouter(NewCatalogUploadHandler(svc, nil, Config{}), middleware.RoleAdmin, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", "c.xlsx", "application/octet-stream", []byte("x"),
		map[string]string{"farmacia_id": "store-9"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store-9", svc.lastInput.StoreID)
}

func TestUploadRejectsForeignStore(t *testing.T) {
	svc := &fakeCatalogService{}
	router := newUploadRouter(NewCatalogUploadHandler(svc, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", "c.xlsx", sheet.MimeXLSX, []byte("x"),
		map[string]string{"store_id": "store-2"}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, svc.ingestCalls)
}

func TestUploadRequestErrors(t *testing.T) {
	svc := &fakeCatalogService{}
	h := NewCatalogUploadHandler(svc, nil, Config{MaxUploadBytes: 8})
	router := newUploadRouter(h, middleware.RolePharmacy, "store-1")

	tests := []struct {
		name     string
		filename string
		ctype    string
		data     []byte
		status   int
		msg      string
	}{
		{"missing file", "", "", nil, http.StatusBadRequest, apperrors.ErrMissingFile.Message},
		{"csv file", "c.csv", "text/csv", []byte("a,b"), http.StatusBadRequest, apperrors.ErrUnsupportedFile.Message},
		{"too large", "c.xlsx", sheet.MimeXLSX, bytes.Repeat([]byte("x"), 64), http.StatusRequestEntityTooLarge, "file too large (max 0MB)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", tt.filename, tt.ctype, tt.data, nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeUpload(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
	assert.Zero(t, svc.ingestCalls)
}

func TestUploadServiceErrors(t *testing.T) {
	svc := &fakeCatalogService{
		ingestFn: func(services.UploadInput) (*services.IngestionSummary, error) {
			return nil, &services.ServiceError{
				StatusCode: http.StatusBadRequest,
				Message:    ingest.MissingNameColumnMessage,
				ColumnMap:  ingest.ColumnMapping{ingest.FieldPrice: "Precio"},
			}
		},
	}
	router := newUploadRouter(NewCatalogUploadHandler(svc, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", "c.xlsx", sheet.MimeXLSX, []byte("x"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeUpload(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, ingest.MissingNameColumnMessage, resp.Error)
	assert.Equal(t, map[string]string{"price": "Precio"}, resp.ColumnMap)

	svc.ingestFn = func(services.UploadInput) (*services.IngestionSummary, error) {
		return nil, errors.New("boom")
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload", "c.xlsx", sheet.MimeXLSX, []byte("x"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeUpload(t, rec).Error)
}

func TestUploadAsync(t *testing.T) {
	svc := &fakeCatalogService{}
	jobs := &fakeImportJobs{}
	router := newUploadRouter(NewCatalogUploadHandler(svc, jobs, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload?async=true", "c.xlsx", sheet.MimeXLSX, []byte("x"), nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, models.ImportStatusPending, body["status"])
	require.Len(t, jobs.submitted, 1)
	assert.Equal(t, "store-1", jobs.submitted[0].StoreID)
	assert.Zero(t, svc.ingestCalls)
}

func TestUploadAsyncWithoutWorker(t *testing.T) {
	router := newUploadRouter(NewCatalogUploadHandler(&fakeCatalogService{}, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/upload?async=true", "c.xlsx", sheet.MimeXLSX, []byte("x"), nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPreview(t *testing.T) {
	svc := &fakeCatalogService{
		previewFn: func(services.UploadInput) (*services.PreviewResult, error) {
			return &services.PreviewResult{
				ColumnMap: ingest.ColumnMapping{ingest.FieldName: "Nombre"},
				Valid:     true,
				Records:   []ingest.ProductRecord{{Row: 2, Name: "Gasas"}},
				Errors:    []ingest.IngestionError{},
				TotalRows: 1,
			}, nil
		},
	}
	router := newUploadRouter(NewCatalogUploadHandler(svc, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "/catalog/preview", "c.xlsx", sheet.MimeXLSX, []byte("x"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out services.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Valid)
	assert.Equal(t, "Nombre", out.ColumnMap[ingest.FieldName])
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Gasas", out.Records[0].Name)
	assert.Zero(t, svc.ingestCalls)
}

func TestJobStatus(t *testing.T) {
	jobs := &fakeImportJobs{jobs: map[string]*models.ImportJob{
		"job-1": {ID: "job-1", Status: models.ImportStatusDone, Result: &models.UploadResponse{Success: true, Inserted: 2, Errors: []string{}}},
	}}
	router := newUploadRouter(NewCatalogUploadHandler(&fakeCatalogService{}, jobs, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/uploads/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.ImportStatusDone, job.Status)
	assert.Equal(t, 2, job.Result.Inserted)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/uploads/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Job not found"}`, rec.Body.String())
}

func TestTemplateDownload(t *testing.T) {
	router := newUploadRouter(NewCatalogUploadHandler(&fakeCatalogService{}, nil, Config{}), middleware.RolePharmacy, "store-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/template", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sheet.MimeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), TemplateFileName)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet.TemplateSheet)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, sheet.TemplateHeaders, rows[0])
}
