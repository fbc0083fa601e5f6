// Package providers defines the carrier capability contract and the
// registry that maps carrier codes to implementations. Each carrier package
// implements Provider once; the fallback mechanism implements it once more
// as a rate-only provider.
package providers

import (
	"context"
	"encoding/json"

	"shipping-gateway/internal/models"
)

// LabelRequest carries everything a provider needs to turn a previously
// quoted rate into a label. ProviderData is the opaque payload the provider
// attached to the original quote; it is round-tripped through the
// redemption store untouched.
type LabelRequest struct {
	Shipment     *models.ShipmentDetails
	RateID       string
	ServiceCode  string
	ProviderData json.RawMessage
}

// Provider is the capability contract implemented per carrier.
//
// GetRates may fail with a CarrierRateError; during aggregation such
// failures are recovered locally and never abort the request. CreateLabel
// and GetTrackingDetails failures surface directly since there is exactly
// one target provider per call and no fallback is semantically valid.
type Provider interface {
	// Code returns the carrier code this provider serves.
	Code() string

	// GetRates returns the carrier's priced options for the shipment.
	GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error)

	// CreateLabel redeems a previously quoted rate into a label.
	CreateLabel(ctx context.Context, req *LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error)

	// GetTrackingDetails returns the current tracking state for a number.
	GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error)
}
