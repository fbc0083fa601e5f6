package events

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// KafkaPublisher publishes events to a Kafka topic, keyed by merchant so a
// merchant's events stay ordered within a partition.
type KafkaPublisher struct {
	config   KafkaConfig
	producer *kafka.Producer
	logger   logging.Logger
}

// NewKafkaPublisher creates a Kafka producer for the configured brokers.
func NewKafkaPublisher(config KafkaConfig, logger logging.Logger) (*KafkaPublisher, error) {
	if config.Brokers == "" {
		return nil, errors.ConfigError("kafka brokers are required")
	}
	if config.Topic == "" {
		config.Topic = "shipping-events"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": config.Brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create kafka producer", err)
	}

	p := &KafkaPublisher{
		config:   config,
		producer: producer,
		logger:   logger,
	}
	go p.drainDeliveryReports()
	return p, nil
}

// drainDeliveryReports logs failed deliveries; events are fire-and-forget
// so there is no caller to hand the error back to.
func (p *KafkaPublisher) drainDeliveryReports() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			p.logger.Warn("Kafka event delivery failed",
				logging.String("topic", p.config.Topic),
				logging.Err(m.TopicPartition.Error))
		}
	}
}

// Publish enqueues the event on the producer.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.config.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.MerchantID),
		Value:          body,
	}, nil)
}

// Close flushes pending messages and shuts the producer down.
func (p *KafkaPublisher) Close() error {
	p.producer.Flush(5000)
	p.producer.Close()
	return nil
}
