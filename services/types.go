package services

import (
	"context"
	"time"

	"catalog-service/ingest"

	"github.com/go-redis/redis/v8"
)

// ServiceError represents a typed error with an HTTP status code.
// RowErrors and ColumnMap are set when the failure is about the file contents.
type ServiceError struct {
	StatusCode int
	Message    string
	RowErrors  []ingest.IngestionError
	ColumnMap  ingest.ColumnMapping
}

func (e *ServiceError) Error() string {
	return e.Message
}

func badRequest(msg string) *ServiceError {
	return &ServiceError{StatusCode: 400, Message: msg}
}

func internalError(msg string) *ServiceError {
	return &ServiceError{StatusCode: 500, Message: msg}
}

// RedisAPI is the subset of *redis.Client used by the job store and queue.
type RedisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// CacheInvalidator drops cached product listings after a catalog change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}
