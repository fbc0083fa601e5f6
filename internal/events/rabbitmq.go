package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// RabbitMQConfig configures the RabbitMQ publisher.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// RabbitMQPublisher publishes events to a RabbitMQ topic exchange, routed
// by event type.
type RabbitMQPublisher struct {
	config  RabbitMQConfig
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  logging.Logger
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitMQPublisher(config RabbitMQConfig, logger logging.Logger) (*RabbitMQPublisher, error) {
	if config.URL == "" {
		return nil, errors.ConfigError("rabbitmq url is required")
	}
	if config.Exchange == "" {
		config.Exchange = "shipping.events"
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to rabbitmq", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open rabbitmq channel", err)
	}
	if err := channel.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.ConnectionError(fmt.Sprintf("failed to declare exchange %s", config.Exchange), err)
	}

	return &RabbitMQPublisher{
		config:  config,
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

// Publish sends the event to the exchange with the event type as routing key.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}
	return p.channel.Publish(p.config.Exchange, event.Type, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.ID,
		Timestamp:   event.Timestamp,
		Body:        body,
	})
}

// Close tears down the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
