package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"catalog-service/models"
	awspkg "catalog-service/pkg/aws"
	"catalog-service/sheet"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	jobKeyPrefix   = "catalog_import:job:"
	DefaultJobTTL  = 24 * time.Hour
	DefaultQueue   = "catalog_import:queue"
	DefaultFileDir = "./data/catalog_imports"
	popTimeout     = 5 * time.Second
	retryDelay     = time.Second
)

// ErrJobNotFound is returned when a job id is unknown or expired.
var ErrJobNotFound = errors.New("import job not found")

// JobStore persists import job state.
type JobStore interface {
	Save(ctx context.Context, job *models.ImportJob) error
	Get(ctx context.Context, id string) (*models.ImportJob, error)
}

// JobQueue delivers job ids to a worker.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Consume blocks until ctx is done, calling handle for every job id.
	Consume(ctx context.Context, handle func(ctx context.Context, jobID string) error) error
}

// FileStore holds uploaded spreadsheets until their job has run.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) error
	Load(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}

// RedisJobStore keeps jobs as JSON values with a TTL.
type RedisJobStore struct {
	rdb RedisAPI
	ttl time.Duration
}

func NewRedisJobStore(rdb RedisAPI, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisJobStore{rdb: rdb, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, job *models.ImportJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.rdb.Set(ctx, jobKeyPrefix+job.ID, b, s.ttl).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	val, err := s.rdb.Get(ctx, jobKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job models.ImportJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", id, err)
	}
	return &job, nil
}

// RedisQueue is a list based queue popped with BLPOP. A job whose handler
// fails is pushed back to the tail after retryDelay.
type RedisQueue struct {
	rdb   RedisAPI
	key   string
	delay time.Duration
}

func NewRedisQueue(rdb RedisAPI, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueue
	}
	return &RedisQueue{rdb: rdb, key: key, delay: retryDelay}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.RPush(ctx, q.key, jobID).Err()
}

func (q *RedisQueue) Consume(ctx context.Context, handle func(ctx context.Context, jobID string) error) error {
	zap.L().Info("catalog import worker started", zap.String("queue", q.key))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("catalog import worker stopping")
			return ctx.Err()
		default:
		}

		res, err := q.rdb.BLPop(ctx, popTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			zap.L().Error("redis BLPop failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if len(res) < 2 {
			continue
		}
		if err := handle(ctx, res[1]); err != nil {
			zap.L().Error("catalog import job failed, requeueing", zap.String("job", res[1]), zap.Error(err))
			q.requeue(ctx, res[1])
		}
	}
}

func (q *RedisQueue) requeue(ctx context.Context, jobID string) {
	select {
	case <-ctx.Done():
	case <-time.After(q.delay):
	}
	// ctx may already be cancelled; the id must still go back on the list.
	if err := q.rdb.RPush(context.Background(), q.key, jobID).Err(); err != nil {
		zap.L().Error("failed to requeue catalog import job", zap.String("job", jobID), zap.Error(err))
	}
}

// SQSQueue sends job ids through an SQS queue.
type SQSQueue struct {
	consumer *awspkg.SQSConsumer
}

func NewSQSQueue(consumer *awspkg.SQSConsumer) *SQSQueue {
	return &SQSQueue{consumer: consumer}
}

func (q *SQSQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.consumer.SendMessage(ctx, jobID)
}

func (q *SQSQueue) Consume(ctx context.Context, handle func(ctx context.Context, jobID string) error) error {
	return q.consumer.StartPolling(ctx, func(ctx context.Context, body string) error {
		return handle(ctx, strings.TrimSpace(body))
	})
}

// LocalFileStore keeps uploads on local disk.
type LocalFileStore struct {
	dir string
}

func NewLocalFileStore(dir string) *LocalFileStore {
	if dir == "" {
		dir = DefaultFileDir
	}
	return &LocalFileStore{dir: dir}
}

func (s *LocalFileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean(key)))
}

func (s *LocalFileStore) Save(_ context.Context, key string, data []byte, _ string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return os.WriteFile(s.path(key), data, 0o600)
}

func (s *LocalFileStore) Load(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

func (s *LocalFileStore) Remove(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ObjectStore is the object storage used by S3FileStore.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// S3FileStore keeps uploads in a bucket under a key prefix.
type S3FileStore struct {
	store  ObjectStore
	prefix string
}

func NewS3FileStore(store ObjectStore, prefix string) *S3FileStore {
	return &S3FileStore{store: store, prefix: prefix}
}

func (s *S3FileStore) key(k string) string {
	return path.Join(s.prefix, k)
}

func (s *S3FileStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	return s.store.Put(ctx, s.key(key), data, contentType)
}

func (s *S3FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, s.key(key))
}

func (s *S3FileStore) Remove(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.key(key))
}

// JobIngester runs one import on behalf of a job.
type JobIngester interface {
	IngestJob(ctx context.Context, in UploadInput, jobID string) (*IngestionSummary, error)
}

// IngestJob is Ingest with the job id carried into the published event.
func (s *CatalogService) IngestJob(ctx context.Context, in UploadInput, jobID string) (*IngestionSummary, error) {
	return s.ingest(ctx, in, jobID)
}

// ImportJobs accepts uploads for background processing and runs them.
type ImportJobs struct {
	jobs     JobStore
	queue    JobQueue
	files    FileStore
	ingester JobIngester
	logger   *zap.Logger
	now      func() time.Time
}

func NewImportJobs(jobs JobStore, queue JobQueue, files FileStore, ingester JobIngester, logger *zap.Logger) *ImportJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportJobs{jobs: jobs, queue: queue, files: files, ingester: ingester, logger: logger, now: time.Now}
}

// Submit stores the file and queues it. Checks that need only the request
// run here so a bad upload is rejected before a job exists.
func (j *ImportJobs) Submit(ctx context.Context, in UploadInput) (*models.ImportJob, error) {
	if in.Reader == nil {
		return nil, badRequest(msgMissingFile)
	}
	if in.StoreID == "" {
		return nil, badRequest(msgMissingStore)
	}
	if !sheet.IsSpreadsheet(in.ContentType, in.FileName) {
		return nil, badRequest(msgUnsupportedFile)
	}

	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return nil, internalError("Failed to read file")
	}

	id := uuid.NewString()
	now := j.now().UTC()
	job := &models.ImportJob{
		ID:        id,
		StoreID:   in.StoreID,
		FileName:  in.FileName,
		FileKey:   id + strings.ToLower(filepath.Ext(in.FileName)),
		Status:    models.ImportStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := j.files.Save(ctx, job.FileKey, data, in.ContentType); err != nil {
		j.logger.Error("failed to store import file", zap.String("job", id), zap.Error(err))
		return nil, internalError("Failed to queue import job")
	}
	if err := j.jobs.Save(ctx, job); err != nil {
		j.logger.Error("failed to save import job", zap.String("job", id), zap.Error(err))
		_ = j.files.Remove(ctx, job.FileKey)
		return nil, internalError("Failed to queue import job")
	}
	if err := j.queue.Enqueue(ctx, id); err != nil {
		j.logger.Error("failed to enqueue import job", zap.String("job", id), zap.Error(err))
		_ = j.files.Remove(ctx, job.FileKey)
		job.Status = models.ImportStatusFailed
		job.Error = "failed to enqueue: " + err.Error()
		job.UpdatedAt = j.now().UTC()
		if err := j.jobs.Save(ctx, job); err != nil {
			j.logger.Error("failed to mark import job failed", zap.String("job", id), zap.Error(err))
		}
		return nil, internalError("Failed to queue import job")
	}

	j.logger.Info("catalog import queued", zap.String("job", id), zap.String("store_id", in.StoreID))
	return job, nil
}

// Status returns the current state of a job.
func (j *ImportJobs) Status(ctx context.Context, id string) (*models.ImportJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, badRequest("Job ID required")
	}
	job, err := j.jobs.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Job not found"}
	}
	if err != nil {
		j.logger.Error("failed to read import job", zap.String("job", id), zap.Error(err))
		return nil, internalError("Failed to retrieve job status")
	}
	return job, nil
}

// Run consumes the queue until ctx is cancelled.
func (j *ImportJobs) Run(ctx context.Context) error {
	return j.queue.Consume(ctx, j.Process)
}

// Process runs a single queued job. Unknown and already finished jobs are
// dropped, so a redelivered id is harmless. A job store failure is returned
// and both queues deliver the id again.
func (j *ImportJobs) Process(ctx context.Context, id string) error {
	job, err := j.jobs.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		j.logger.Warn("dropping unknown import job", zap.String("job", id))
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status == models.ImportStatusDone || job.Status == models.ImportStatusFailed {
		j.logger.Info("skipping finished import job", zap.String("job", id), zap.String("status", job.Status))
		return nil
	}

	job.Status = models.ImportStatusProcessing
	job.UpdatedAt = j.now().UTC()
	if err := j.jobs.Save(ctx, job); err != nil {
		return err
	}

	defer func() {
		if err := j.files.Remove(ctx, job.FileKey); err != nil {
			j.logger.Warn("failed to remove import file", zap.String("job", id), zap.Error(err))
		}
	}()

	data, err := j.files.Load(ctx, job.FileKey)
	if err != nil {
		j.logger.Error("failed to load import file", zap.String("job", id), zap.Error(err))
		return j.finish(ctx, job, nil, err)
	}

	summary, err := j.ingester.IngestJob(ctx, UploadInput{
		StoreID:     job.StoreID,
		FileName:    job.FileName,
		ContentType: sheet.MimeXLSX,
		Reader:      bytes.NewReader(data),
	}, job.ID)
	return j.finish(ctx, job, summary, err)
}

func (j *ImportJobs) finish(ctx context.Context, job *models.ImportJob, summary *IngestionSummary, err error) error {
	job.UpdatedAt = j.now().UTC()
	if err != nil {
		job.Status = models.ImportStatusFailed
		job.Error = err.Error()
		job.Result = nil
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			resp := FailureResponse(svcErr)
			job.Result = &resp
		}
	} else {
		job.Status = models.ImportStatusDone
		job.Error = ""
		resp := summary.Response()
		job.Result = &resp
	}
	return j.jobs.Save(ctx, job)
}
