package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsAPI is the subset of the CloudWatch client used by MetricsClient.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient wraps AWS CloudWatch Metrics operations.
// A disabled client accepts every call and sends nothing.
type MetricsClient struct {
	client    MetricsAPI
	namespace string
	enabled   bool
}

// DefaultMetricsNamespace is used when CLOUDWATCH_NAMESPACE is unset.
const DefaultMetricsNamespace = "PharmacyCatalog"

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	return NewMetricsClientWithAPI(cloudwatch.NewFromConfig(cfg), namespace, enabled)
}

func NewMetricsClientWithAPI(api MetricsAPI, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	return &MetricsClient{client: api, namespace: namespace, enabled: enabled}
}

// PutMetric sends a single metric data point to CloudWatch.
func (m *MetricsClient) PutMetric(ctx context.Context, metricName string, value float64, unit types.StandardUnit, dimensions map[string]string) error {
	if m == nil || !m.enabled {
		return nil
	}

	names := make([]string, 0, len(dimensions))
	for k := range dimensions {
		names = append(names, k)
	}
	sort.Strings(names)
	dims := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		dims = append(dims, types.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(dimensions[k]),
		})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: sdkaws.String(metricName),
				Value:      sdkaws.Float64(value),
				Unit:       unit,
				Timestamp:  sdkaws.Time(time.Now()),
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric: %w", err)
	}
	return nil
}

// RecordCount increments a counter metric
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions)
}

// RecordCountN adds n to a counter metric
func (m *MetricsClient) RecordCountN(ctx context.Context, metricName string, n int, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(n), types.StandardUnitCount, dimensions)
}

// RecordLatency records a duration in milliseconds
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.PutMetric(ctx, metricName, float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Catalog import metrics
	MetricProductsCreated = "ProductsCreated"
	MetricProductsUpdated = "ProductsUpdated"
	MetricImportRowErrors = "CatalogImportRowErrors"
	MetricImportLatency   = "CatalogImportLatency"
)
