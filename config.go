package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "catalog-service/pkg/aws"
)

// Config holds all environment variables for the catalog-service.
type Config struct {
	Port      string
	AppEnv    string
	JWTSecret string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	// Store selects the product repository: "postgres" or "dynamodb".
	Store         string
	DynamoTable   string
	RedisURL      string
	JobQueue      string
	JobQueueURL   string
	BulkDir       string
	S3Bucket      string
	S3Prefix      string
	SNSTopicARN   string
	AllowedOrigin string
	RateLimit     int

	DefaultCategory string
	PersistTimeout  time.Duration
	SharedHeaders   bool
	ExemptFirstRow  bool
	MaxUploadBytes  int64

	MetricsEnabled   bool
	MetricsNamespace string
	LogsEnabled      bool
	LogGroup         string
}

// PostgresDSN builds the gorm DSN.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// secretSource is the part of the Secrets Manager client used by LoadConfig.
type secretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
	GetSecretJSON(ctx context.Context, name string, out interface{}) error
}

// LoadConfig loads environment variables into Config and validates them.
// If AWS_USE_SECRETS=true, the JWT secret and DB credentials are read from
// Secrets Manager, falling back to env vars on failure.
func LoadConfig() (*Config, error) {
	var secrets secretSource
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			secrets = awspkg.NewSecretsClient(awsCfg)
		}
	}
	return loadConfig(secrets)
}

func loadConfig(secrets secretSource) (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8086"),
		AppEnv:    getEnv("APP_ENV", "development"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Europe/Madrid"),

		Store:         strings.ToLower(getEnv("CATALOG_STORE", "postgres")),
		DynamoTable:   getEnv("DDB_TABLE_PRODUCTS", "CatalogProducts"),
		RedisURL:      getEnv("REDIS_URL", "redis://redis:6379"),
		JobQueue:      strings.ToLower(getEnv("JOB_QUEUE", "redis")),
		JobQueueURL:   os.Getenv("JOB_QUEUE_URL"),
		BulkDir:       getEnv("BULK_STORAGE_DIR", "./data/catalog_imports"),
		S3Bucket:      os.Getenv("AWS_S3_BUCKET"),
		S3Prefix:      getEnv("AWS_S3_PREFIX", "catalog-imports/"),
		SNSTopicARN:   os.Getenv("CATALOG_SNS_TOPIC_ARN"),
		AllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGINS"),
		RateLimit:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		DefaultCategory: getEnv("CATALOG_DEFAULT_CATEGORY", "Uncategorized"),
		SharedHeaders:   getEnvBool("CATALOG_SHARED_HEADERS"),
		ExemptFirstRow:  getEnvBool("CATALOG_EXEMPT_FIRST_ROW"),
		MaxUploadBytes:  int64(getEnvInt("MAX_UPLOAD_MB", 20)) * 1024 * 1024,

		MetricsEnabled:   getEnvBool("CLOUDWATCH_METRICS_ENABLED"),
		MetricsNamespace: getEnv("CLOUDWATCH_NAMESPACE", awspkg.DefaultMetricsNamespace),
		LogsEnabled:      getEnvBool("CLOUDWATCH_LOGS_ENABLED"),
		LogGroup:         getEnv("CLOUDWATCH_LOG_GROUP", awspkg.DefaultLogGroup),
	}

	timeout, err := time.ParseDuration(getEnv("CATALOG_PERSIST_TIMEOUT", "5s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid CATALOG_PERSIST_TIMEOUT")
	}
	cfg.PersistTimeout = timeout

	if secrets != nil {
		applySecrets(cfg, secrets)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.Store {
	case "postgres":
		if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
			return nil, fmt.Errorf("database config incomplete")
		}
	case "dynamodb":
	default:
		return nil, fmt.Errorf("unsupported CATALOG_STORE %q", cfg.Store)
	}
	switch cfg.JobQueue {
	case "redis":
	case "sqs":
		if cfg.JobQueueURL == "" {
			return nil, fmt.Errorf("JOB_QUEUE_URL is required when JOB_QUEUE=sqs")
		}
	default:
		return nil, fmt.Errorf("unsupported JOB_QUEUE %q", cfg.JobQueue)
	}
	return cfg, nil
}

func applySecrets(cfg *Config, secrets secretSource) {
	ctx := context.Background()
	if v, err := secrets.GetSecret(ctx, "catalog/JWT_SECRET"); err == nil && v != "" {
		cfg.JWTSecret = v
	}

	var db map[string]string
	if err := secrets.GetSecretJSON(ctx, "catalog/DB_CREDENTIALS", &db); err != nil {
		return
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &cfg.PostgresUser,
		"POSTGRES_PASSWORD": &cfg.PostgresPassword,
		"POSTGRES_DB":       &cfg.PostgresDB,
		"POSTGRES_HOST":     &cfg.PostgresHost,
		"POSTGRES_PORT":     &cfg.PostgresPort,
	} {
		if v := db[key]; v != "" {
			*dst = v
		}
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getEnvBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
