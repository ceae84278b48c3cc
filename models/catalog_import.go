package models

import "time"

// UploadResponse is the JSON body returned by a catalog upload.
type UploadResponse struct {
	Success   bool              `json:"success"`
	Inserted  int               `json:"inserted"`
	Updated   int               `json:"updated"`
	Total     int               `json:"total"`
	Errors    []string          `json:"errors"`
	ColumnMap map[string]string `json:"columnMap,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Import job statuses.
const (
	ImportStatusPending    = "pending"
	ImportStatusProcessing = "processing"
	ImportStatusDone       = "done"
	ImportStatusFailed     = "failed"
)

// ImportJob is the state of an asynchronous catalog import.
type ImportJob struct {
	ID        string          `json:"job_id"`
	StoreID   string          `json:"store_id"`
	FileName  string          `json:"file_name"`
	FileKey   string          `json:"file_key"`
	Status    string          `json:"status"`
	Result    *UploadResponse `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CatalogImportedEvent is published after an import wrote at least one product.
type CatalogImportedEvent struct {
	EventType string    `json:"event_type"`
	StoreID   string    `json:"store_id"`
	JobID     string    `json:"job_id,omitempty"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}
