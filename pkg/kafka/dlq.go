package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQSuffix is appended to the original topic to form the dead-letter topic.
const DLQSuffix = ".dlq"

// DLQProducer writes messages that exhausted their handler retries to a
// dead-letter topic, preserving the original payload and annotating the
// failure reason.
type DLQProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewDLQProducer creates a producer for dead-letter topics. The topic is set
// per-message so one producer serves every consumer in a process.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		logger: logger,
	}
}

// Publish forwards the failed message to <original-topic>.dlq with failure metadata headers.
func (p *DLQProducer) Publish(ctx context.Context, original kafka.Message, handlerErr error, groupID string) error {
	dlqTopic := original.Topic + DLQSuffix

	headers := append([]kafka.Header{}, original.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq-original-topic", Value: []byte(original.Topic)},
		kafka.Header{Key: "dlq-original-partition", Value: []byte(fmt.Sprintf("%d", original.Partition))},
		kafka.Header{Key: "dlq-original-offset", Value: []byte(fmt.Sprintf("%d", original.Offset))},
		kafka.Header{Key: "dlq-consumer-group", Value: []byte(groupID)},
		kafka.Header{Key: "dlq-error", Value: []byte(handlerErr.Error())},
		kafka.Header{Key: "dlq-failed-at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   dlqTopic,
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("failed to write to dlq topic %s: %w", dlqTopic, err)
	}

	p.logger.Warn("message dead-lettered",
		slog.String("dlq_topic", dlqTopic),
		slog.String("original_topic", original.Topic),
		slog.Int64("original_offset", original.Offset),
		slog.String("error", handlerErr.Error()),
	)
	return nil
}

// Close closes the underlying writer.
func (p *DLQProducer) Close() error {
	return p.writer.Close()
}
