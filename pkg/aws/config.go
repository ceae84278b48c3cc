package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
)

// LocalEndpoint returns the endpoint override used for LocalStack, preferring
// AWS_ENDPOINT over the service specific AWS_S3_ENDPOINT and AWS_SQS_ENDPOINT.
func LocalEndpoint() string {
	for _, key := range []string{"AWS_ENDPOINT", "AWS_S3_ENDPOINT", "AWS_SQS_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadAWSConfig loads the default AWS config. When a LocalStack endpoint is
// configured every client built from the returned config targets it.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}

	if endpoint := LocalEndpoint(); endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
		zap.L().Debug("aws custom endpoint configured",
			zap.String("endpoint", endpoint),
			zap.String("region", cfg.Region),
		)
	}
	return cfg, nil
}
