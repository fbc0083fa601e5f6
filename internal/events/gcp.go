package events

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// GCPConfig configures the Google Pub/Sub publisher.
type GCPConfig struct {
	ProjectID string
	Topic     string
}

// GCPPublisher publishes events to a Pub/Sub topic.
type GCPPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger logging.Logger
}

// NewGCPPublisher creates a Pub/Sub client for the configured topic.
// Credentials come from the ambient service account.
func NewGCPPublisher(ctx context.Context, config GCPConfig, logger logging.Logger) (*GCPPublisher, error) {
	if config.ProjectID == "" || config.Topic == "" {
		return nil, errors.ConfigError("gcp publisher needs a project id and topic")
	}

	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, errors.ConnectionError("failed to create pubsub client", err)
	}

	return &GCPPublisher{
		client: client,
		topic:  client.Topic(config.Topic),
		logger: logger,
	}, nil
}

// Publish sends the event and waits for the server acknowledgement.
func (p *GCPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"event_type": event.Type},
	})
	_, err = result.Get(ctx)
	return err
}

// Close stops the topic's publish goroutines and the client.
func (p *GCPPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
