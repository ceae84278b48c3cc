package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client used by SQSConsumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSConsumer sends to and consumes from a single SQS queue.
type SQSConsumer struct {
	client   SQSAPI
	queueURL string
}

func NewSQSConsumer(cfg sdkaws.Config, queueURL string) *SQSConsumer {
	return NewSQSConsumerWithClient(sqs.NewFromConfig(cfg), queueURL)
}

func NewSQSConsumerWithClient(client SQSAPI, queueURL string) *SQSConsumer {
	return &SQSConsumer{client: client, queueURL: queueURL}
}

// MessageHandler processes one message body. A returned error leaves the
// message on the queue so it becomes visible again.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling long-polls the queue until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	zap.L().Info("sqs polling started", zap.String("queue_url", c.queueURL))
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sqs polling stopped", zap.String("queue_url", c.queueURL))
			return ctx.Err()
		default:
			if err := c.PollOnce(ctx, handler); err != nil && ctx.Err() == nil {
				zap.L().Error("sqs poll failed", zap.Error(err))
			}
		}
	}
}

// PollOnce receives one batch and deletes every message the handler accepted.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   300,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			zap.L().Warn("sqs message handler failed", zap.Error(err))
			continue
		}
		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			zap.L().Error("sqs delete failed", zap.Error(err))
		}
	}
	return nil
}

// SendMessage sends a single message to the queue.
func (c *SQSConsumer) SendMessage(ctx context.Context, body string) error {
	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.queueURL,
		MessageBody: &body,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
