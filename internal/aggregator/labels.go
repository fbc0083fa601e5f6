package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/events"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
	"shipping-gateway/internal/ratecache"
)

// LabelResolver turns a previously quoted rate into a carrier label.
type LabelResolver struct {
	registry    *providers.Registry
	rateCache   *ratecache.RateCache
	configStore ConfigStore
	publisher   events.Publisher
	logger      logging.Logger
}

// NewLabelResolver creates a label resolver.
func NewLabelResolver(registry *providers.Registry, rateCache *ratecache.RateCache, configStore ConfigStore, publisher events.Publisher, logger logging.Logger) *LabelResolver {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LabelResolver{
		registry:    registry,
		rateCache:   rateCache,
		configStore: configStore,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateLabel redeems a quote ID for the merchant that owns it. The quote
// must still be within its redemption window and must belong to the
// requesting merchant.
func (r *LabelResolver) CreateLabel(ctx context.Context, merchantID, quoteID string) (*models.Label, error) {
	entry, err := r.rateCache.GetRedemption(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if entry.MerchantID != merchantID {
		// Do not reveal that the quote exists for another merchant.
		return nil, errors.SelectedRateInvalidError(quoteID)
	}

	provider, err := r.registry.Get(entry.CarrierCode)
	if err != nil {
		return nil, errors.SelectedRateInvalidError(quoteID)
	}

	cfg, err := r.configStore.GetProviderConfig(ctx, merchantID, entry.CarrierCode)
	if err != nil {
		return nil, err
	}

	label, err := provider.CreateLabel(ctx, &providers.LabelRequest{
		Shipment:     entry.Shipment,
		RateID:       quoteID,
		ServiceCode:  entry.ServiceCode,
		ProviderData: entry.ProviderData,
	}, cfg)
	if err != nil {
		return nil, err
	}

	r.publishLabelCreated(ctx, merchantID, label)
	return label, nil
}

func (r *LabelResolver) publishLabelCreated(ctx context.Context, merchantID string, label *models.Label) {
	payload, err := json.Marshal(label)
	if err != nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeLabelCreated,
		MerchantID: merchantID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish label.created event",
			logging.String("merchant_id", merchantID),
			logging.Err(err))
	}
}
