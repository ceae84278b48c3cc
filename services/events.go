package services

import (
	"context"
	"encoding/json"
	"time"

	"catalog-service/models"
	awspkg "catalog-service/pkg/aws"

	"go.uber.org/zap"
)

// EventCatalogImported is the event type sent after an import changed a catalog.
const EventCatalogImported = "catalog.imported"

// ImportMetrics is the subset of the metrics client used by ingestion.
type ImportMetrics interface {
	RecordCountN(ctx context.Context, metricName string, n int, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// EventPublisher sends catalog events to an SNS topic. A nil publisher or an
// empty topic turns Publish into a no-op.
type EventPublisher struct {
	sns   awspkg.SNSPublisher
	topic string
}

func NewEventPublisher(sns awspkg.SNSPublisher, topic string) *EventPublisher {
	return &EventPublisher{sns: sns, topic: topic}
}

// CatalogImported publishes a summary of a finished import. Failures are
// logged and never reach the caller.
func (p *EventPublisher) CatalogImported(ctx context.Context, storeID, jobID string, s IngestionSummary) {
	if p == nil || p.sns == nil || p.topic == "" {
		return
	}
	evt := models.CatalogImportedEvent{
		EventType: EventCatalogImported,
		StoreID:   storeID,
		JobID:     jobID,
		Inserted:  s.Inserted,
		Updated:   s.Updated,
		Errors:    len(s.Errors),
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		zap.L().Error("failed to marshal catalog event", zap.Error(err))
		return
	}
	if err := p.sns.Publish(ctx, p.topic, body); err != nil {
		zap.L().Warn("failed to publish catalog event", zap.String("store_id", storeID), zap.Error(err))
	}
}
