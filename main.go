package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/common/auth"
	apperrors "catalog-service/common/errors"
	"catalog-service/common/logger"
	commonmw "catalog-service/common/middleware"
	"catalog-service/controllers"
	"catalog-service/database"
	"catalog-service/ingest"
	"catalog-service/middleware"
	awspkg "catalog-service/pkg/aws"
	"catalog-service/repository"
	"catalog-service/routes"
	"catalog-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "catalog-service"

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	zlog, flush, err := logger.Initialize(os.Getenv("APP_ENV"), nil)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { flush() }()

	cfg, err := LoadConfig()
	if err != nil {
		zlog.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, awsErr := awspkg.LoadAWSConfig(context.Background())
	if awsErr != nil {
		zlog.Warn("AWS config unavailable, AWS integrations disabled", zap.Error(awsErr))
	}

	if cfg.LogsEnabled && awsErr == nil {
		cw, err := awspkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.LogGroup, serviceName)
		if err != nil {
			zlog.Warn("CloudWatch Logs unavailable, logging to stdout only", zap.Error(err))
		} else {
			flush()
			withCW, cwFlush, err := logger.Initialize(cfg.AppEnv, cw)
			if err != nil {
				log.Fatalf("failed to initialize logger: %v", err)
			}
			zlog, flush = withCW, cwFlush
		}
	}

	// --- 1. Storage ---

	var db *gorm.DB
	var productRepo repository.ProductRepo
	switch cfg.Store {
	case "dynamodb":
		if awsErr != nil {
			zlog.Fatal("CATALOG_STORE=dynamodb requires AWS configuration", zap.Error(awsErr))
		}
		productRepo = repository.NewDynamoAdapter(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
	default:
		db, err = database.ConnectPostgres(zlog, cfg.PostgresDSN())
		if err != nil {
			zlog.Fatal("Failed to connect to database", zap.Error(err))
		}
		productRepo = repository.NewGormProductRepository(db)
	}
	if err := productRepo.EnsureSchema(context.Background()); err != nil {
		zlog.Fatal("Failed to prepare product schema", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zlog.Warn("Failed to parse REDIS_URL, falling back to default", zap.Error(err))
		redisOpts = &redis.Options{Addr: "redis:6379", DB: 0}
	}
	rdb := redis.NewClient(redisOpts)

	// --- 2. Dependency Injection ---

	metrics := awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled && awsErr == nil)
	cache := controllers.NewCacheManager(rdb, controllers.DefaultCacheTTL)

	var events *services.EventPublisher
	if cfg.SNSTopicARN != "" && awsErr == nil {
		events = services.NewEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.SNSTopicARN)
	}

	policy := ingest.ClaimOnce
	if cfg.SharedHeaders {
		policy = ingest.ShareHeaders
	}
	reconciler := services.NewReconciler(productRepo, services.ReconcilerConfig{
		DefaultCategory: cfg.DefaultCategory,
		PersistTimeout:  cfg.PersistTimeout,
	}, zlog)
	catalogService := services.NewCatalogService(productRepo, reconciler, services.CatalogServiceConfig{
		Policy:         policy,
		ExemptFirstRow: cfg.ExemptFirstRow,
	}, zlog).
		WithCache(cache).
		WithEvents(events).
		WithMetrics(metrics)

	importJobs := services.NewImportJobs(
		services.NewRedisJobStore(rdb, services.DefaultJobTTL),
		newJobQueue(cfg, awsCfg, awsErr, rdb),
		newFileStore(cfg, awsCfg, awsErr),
		catalogService,
		zlog,
	)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := importJobs.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("Catalog import worker stopped", zap.Error(err))
		}
	}()

	ctrlCfg := controllers.Config{MaxUploadBytes: cfg.MaxUploadBytes}
	handlers := routes.Handlers{
		Upload:   controllers.NewCatalogUploadHandler(catalogService, importJobs, ctrlCfg),
		Products: controllers.NewProductController(catalogService, cache, ctrlCfg),
	}

	// --- 3. HTTP Server & Middleware ---

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		commonmw.RequestID(),
		commonmw.RequestLogger(zlog),
		commonmw.SecurityHeaders(),
		commonmw.CORS(cfg.AllowedOrigin),
		commonmw.MetricsMiddleware(metrics, serviceName),
		apperrors.ErrorMiddleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	tokens := auth.NewTokenParser(cfg.JWTSecret)
	routes.RegisterRoutes(r, handlers, middleware.AuthMiddleware(tokens), cfg.RateLimit)

	// --- 4. Graceful Shutdown ---

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("Catalog Service starting", zap.String("port", cfg.Port), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down Catalog Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	stopWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		zlog.Warn("Catalog import worker did not stop in time")
	}

	if err := rdb.Close(); err != nil {
		zlog.Error("Failed to close Redis", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zlog.Error("Failed to close database", zap.Error(err))
	}

	zlog.Info("Catalog Service stopped gracefully")
}

func newJobQueue(cfg *Config, awsCfg sdkaws.Config, awsErr error, rdb *redis.Client) services.JobQueue {
	if cfg.JobQueue == "sqs" {
		if awsErr != nil {
			zap.L().Fatal("JOB_QUEUE=sqs requires AWS configuration", zap.Error(awsErr))
		}
		return services.NewSQSQueue(awspkg.NewSQSConsumer(awsCfg, cfg.JobQueueURL))
	}
	return services.NewRedisQueue(rdb, services.DefaultQueue)
}

func newFileStore(cfg *Config, awsCfg sdkaws.Config, awsErr error) services.FileStore {
	if cfg.S3Bucket != "" && awsErr == nil {
		store := awspkg.NewS3Store(awspkg.NewS3Client(awsCfg), cfg.S3Bucket)
		return services.NewS3FileStore(store, cfg.S3Prefix)
	}
	return services.NewLocalFileStore(cfg.BulkDir)
}
