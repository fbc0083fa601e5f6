package events

import (
	"context"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// Backend names accepted by NewPublisher.
const (
	BackendNone     = ""
	BackendRabbitMQ = "rabbitmq"
	BackendKafka    = "kafka"
	BackendAWS      = "aws"
	BackendGCP      = "gcp"
)

// Config selects and configures an event backend.
type Config struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	Kafka    KafkaConfig
	AWS      AWSConfig
	GCP      GCPConfig
}

// NewPublisher builds the publisher for the configured backend. An empty
// backend yields the nop publisher.
func NewPublisher(ctx context.Context, config Config, logger logging.Logger) (Publisher, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	switch config.Backend {
	case BackendNone:
		return NewNopPublisher(), nil
	case BackendRabbitMQ:
		return NewRabbitMQPublisher(config.RabbitMQ, logger)
	case BackendKafka:
		return NewKafkaPublisher(config.Kafka, logger)
	case BackendAWS:
		return NewAWSPublisher(ctx, config.AWS, logger)
	case BackendGCP:
		return NewGCPPublisher(ctx, config.GCP, logger)
	default:
		return nil, errors.ConfigError("unknown events backend: "+config.Backend)
	}
}
