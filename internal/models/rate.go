package models

import (
	"encoding/json"
	"time"
)

// FallbackCarrierCode is the carrier code reserved for synthetic quotes
// produced by the fallback engine. The fallback provider is rate-only.
const FallbackCarrierCode = "fallback"

// DeliveryEstimate describes when a carrier expects to deliver. Either the
// day range or the date range may be set, depending on what the carrier
// returned.
type DeliveryEstimate struct {
	MinDays      int        `json:"min_days,omitempty"`
	MaxDays      int        `json:"max_days,omitempty"`
	EarliestDate *time.Time `json:"earliest_date,omitempty"`
	LatestDate   *time.Time `json:"latest_date,omitempty"`
}

// Surcharge is a named cost component a carrier added on top of the base rate.
type Surcharge struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// RateQuote is one priced shipping option. The ID is generated fresh per
// aggregation response (and again for every rule-transformed copy); it must
// remain resolvable to the owning carrier and enough provider data to build
// a label for the lifetime of the quote.
type RateQuote struct {
	ID                   string            `json:"id"`
	CarrierCode          string            `json:"carrier_code"`
	ServiceCode          string            `json:"service_code"`
	ServiceName          string            `json:"service_name"`
	Amount               float64           `json:"amount"`
	Currency             string            `json:"currency"`
	DeliveryEstimate     *DeliveryEstimate `json:"delivery_estimate,omitempty"`
	Surcharges           []Surcharge       `json:"surcharges,omitempty"`
	Message              string            `json:"message,omitempty"`
	OriginalProviderRate json.RawMessage   `json:"original_provider_rate,omitempty"`
}

// Label is the result of redeeming a quote with the owning carrier.
type Label struct {
	LabelID        string    `json:"label_id"`
	CarrierCode    string    `json:"carrier_code"`
	TrackingNumber string    `json:"tracking_number"`
	LabelURL       string    `json:"label_url,omitempty"`
	LabelData      string    `json:"label_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TrackingEvent is a single scan or status change.
type TrackingEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// TrackingDetails is the current tracking state of a shipment.
type TrackingDetails struct {
	TrackingNumber    string          `json:"tracking_number"`
	CarrierCode       string          `json:"carrier_code"`
	Status            string          `json:"status"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	Events            []TrackingEvent `json:"events,omitempty"`
}
