// Package fallbackprovider registers the reserved "fallback" carrier code.
// Synthetic fallback quotes are produced by the fallback engine, never by
// a live carrier call, so this provider only exists to make the reserved
// code resolvable and to reject operations fallback quotes cannot support.
package fallbackprovider

import (
	"context"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

// Provider is the rate-only placeholder behind models.FallbackCarrierCode.
type Provider struct{}

// New creates the fallback provider.
func New() *Provider { return &Provider{} }

// Code returns the reserved fallback carrier code.
func (p *Provider) Code() string { return models.FallbackCarrierCode }

// GetRates returns nothing: fallback quotes come from the fallback engine,
// not from rating this provider.
func (p *Provider) GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error) {
	return nil, nil
}

// CreateLabel always fails: a fallback quote has no carrier to redeem with.
func (p *Provider) CreateLabel(ctx context.Context, req *providers.LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error) {
	return nil, errors.OperationNotSupportedError(models.FallbackCarrierCode, "create_label")
}

// GetTrackingDetails always fails: fallback quotes never ship anything.
func (p *Provider) GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error) {
	return nil, errors.OperationNotSupportedError(models.FallbackCarrierCode, "get_tracking_details")
}
