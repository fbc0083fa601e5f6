package aggregator

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

// TrackingResolver locates tracking details for a number whose owning
// carrier may be unknown.
type TrackingResolver struct {
	registry    *providers.Registry
	configStore ConfigStore
	logger      logging.Logger
}

// NewTrackingResolver creates a tracking resolver.
func NewTrackingResolver(registry *providers.Registry, configStore ConfigStore, logger logging.Logger) *TrackingResolver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &TrackingResolver{
		registry:    registry,
		configStore: configStore,
		logger:      logger,
	}
}

// GetTracking resolves tracking details. When carrierHint names a carrier,
// that carrier is asked first; remaining enabled carriers are then probed
// one at a time in stable registry order. Probing is sequential on purpose:
// most lookups resolve on the first carrier, and tracking is not latency
// sensitive enough to justify fanning out.
func (r *TrackingResolver) GetTracking(ctx context.Context, merchantID, trackingNumber, carrierHint string) (*models.TrackingDetails, error) {
	configs, err := r.configStore.ListProviderConfigs(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	byCarrier := make(map[string]*models.MerchantProviderConfig, len(configs))
	for _, cfg := range configs {
		if cfg.Enabled {
			byCarrier[cfg.CarrierCode] = cfg
		}
	}

	order := make([]string, 0, len(byCarrier))
	if carrierHint != "" {
		if _, ok := byCarrier[carrierHint]; ok {
			order = append(order, carrierHint)
		}
	}
	for _, code := range r.registry.Codes() {
		if code == carrierHint {
			continue
		}
		if _, ok := byCarrier[code]; ok {
			order = append(order, code)
		}
	}

	var probeErrs *multierror.Error
	for _, code := range order {
		provider, err := r.registry.Get(code)
		if err != nil {
			continue
		}
		details, err := provider.GetTrackingDetails(ctx, trackingNumber, byCarrier[code])
		if err != nil {
			if errors.IsType(err, errors.ErrTypeOperationNotSupported) {
				continue
			}
			r.logger.Debug("Tracking probe failed",
				logging.String("carrier", code),
				logging.String("tracking_number", trackingNumber),
				logging.Err(err))
			probeErrs = multierror.Append(probeErrs, err)
			continue
		}
		return details, nil
	}

	return nil, errors.TrackingInfoUnavailableError(trackingNumber, probeErrs.ErrorOrNil())
}
