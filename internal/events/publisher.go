// Package events publishes gateway lifecycle events (rates quoted, label
// created) to a configurable message backend. Publishing is fire-and-forget
// from the caller's point of view: a broker outage must never fail the
// request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the gateway.
const (
	TypeRatesQuoted  = "rates.quoted"
	TypeLabelCreated = "label.created"
)

// Event is the envelope published to the configured backend.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	MerchantID string          `json:"merchant_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Publisher delivers events to a backend.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards every event. It is the default when no backend is
// configured.
type NopPublisher struct{}

// NewNopPublisher creates a publisher that discards events.
func NewNopPublisher() *NopPublisher { return &NopPublisher{} }

// Publish discards the event.
func (p *NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close is a no-op.
func (p *NopPublisher) Close() error { return nil }
