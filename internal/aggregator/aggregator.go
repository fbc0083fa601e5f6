// Package aggregator orchestrates a rate request end to end: rule
// evaluation, concurrent carrier fan-out, pricing transforms, fallback
// degradation, and persistence of quote identities for later redemption.
package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/events"
	"shipping-gateway/internal/fallback"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
	"shipping-gateway/internal/ratecache"
	"shipping-gateway/internal/rules"
)

// DefaultCarrierTimeout bounds a single carrier's rate call. A slow carrier
// delays the response by at most this much; it never blocks the others.
const DefaultCarrierTimeout = 10 * time.Second

// ConfigStore is the read interface the aggregator loads merchant
// configuration through.
type ConfigStore interface {
	ListProviderConfigs(ctx context.Context, merchantID string) ([]*models.MerchantProviderConfig, error)
	GetProviderConfig(ctx context.Context, merchantID, carrierCode string) (*models.MerchantProviderConfig, error)
	GetFallbackPolicy(ctx context.Context, merchantID string) (*models.FallbackPolicy, error)
}

// RateResult is the outcome of an aggregation. Degraded is set when the
// quotes came from the fallback engine rather than live carriers.
type RateResult struct {
	Quotes   []models.RateQuote `json:"quotes"`
	Degraded bool               `json:"degraded,omitempty"`
}

// Service aggregates rates across the registered carrier providers.
type Service struct {
	registry       *providers.Registry
	ruleEngine     *rules.Engine
	fallbackEngine *fallback.Engine
	rateCache      *ratecache.RateCache
	configStore    ConfigStore
	publisher      events.Publisher
	carrierTimeout time.Duration
	logger         logging.Logger
}

// New creates the aggregation service. A zero carrierTimeout selects the
// default.
func New(
	registry *providers.Registry,
	ruleEngine *rules.Engine,
	fallbackEngine *fallback.Engine,
	rateCache *ratecache.RateCache,
	configStore ConfigStore,
	publisher events.Publisher,
	carrierTimeout time.Duration,
	logger logging.Logger,
) *Service {
	if carrierTimeout <= 0 {
		carrierTimeout = DefaultCarrierTimeout
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Service{
		registry:       registry,
		ruleEngine:     ruleEngine,
		fallbackEngine: fallbackEngine,
		rateCache:      rateCache,
		configStore:    configStore,
		publisher:      publisher,
		carrierTimeout: carrierTimeout,
		logger:         logger,
	}
}

type carrierResult struct {
	carrier string
	quotes  []models.RateQuote
	err     error
}

// GetRates returns the priced shipping options for a merchant's shipment.
//
// Carriers are queried concurrently and independently: one carrier failing
// or timing out removes only its own quotes. When every carrier fails, or
// rules filter everything out, the merchant's fallback policy decides what
// the caller sees. An empty result after fallback is an error, never an
// empty 200.
func (s *Service) GetRates(ctx context.Context, merchantID string, shipment *models.ShipmentDetails) (*RateResult, error) {
	configs, err := s.configStore.ListProviderConfigs(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	matched, err := s.ruleEngine.Evaluate(ctx, merchantID, shipment)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.MerchantProviderConfig, 0, len(configs))
	enabledCodes := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if !s.registry.IsRegistered(cfg.CarrierCode) {
			s.logger.Warn("Merchant config references unknown carrier",
				logging.String("merchant_id", merchantID),
				logging.String("carrier", cfg.CarrierCode))
			continue
		}
		enabled = append(enabled, cfg)
		enabledCodes = append(enabledCodes, cfg.CarrierCode)
	}

	eligibility := rules.ResolveEligibility(matched, enabledCodes)

	live := s.fanOut(ctx, merchantID, shipment, enabled, eligibility)

	// Every quote gets a fresh identity per response; transformed copies
	// are re-identified again inside the transform.
	for i := range live {
		live[i].ID = uuid.NewString()
	}

	transform := rules.NewPricingTransform(matched, s.logger)
	quotes := transform.Apply(live, eligibility)

	result := &RateResult{Quotes: quotes}
	if len(quotes) == 0 {
		result.Quotes = s.degrade(ctx, merchantID, shipment)
		result.Degraded = len(result.Quotes) > 0
	}
	if len(result.Quotes) == 0 {
		return nil, errors.ShippingRateUnavailableError()
	}

	if !result.Degraded {
		s.rateCache.SaveSnapshot(ctx, merchantID, shipment, result.Quotes)
	}
	s.rateCache.SaveRedemptions(ctx, merchantID, shipment, result.Quotes)
	s.publishRatesQuoted(ctx, merchantID, result)

	return result, nil
}

// fanOut queries all eligible carriers concurrently and merges what
// succeeded, preserving carrier registration order in the merged list.
func (s *Service) fanOut(ctx context.Context, merchantID string, shipment *models.ShipmentDetails, configs []*models.MerchantProviderConfig, eligibility *rules.Eligibility) []models.RateQuote {
	results := make([]carrierResult, len(configs))
	var wg sync.WaitGroup

	for i, cfg := range configs {
		if !eligibility.CarrierAllowed(cfg.CarrierCode) {
			results[i] = carrierResult{carrier: cfg.CarrierCode}
			continue
		}
		provider, err := s.registry.Get(cfg.CarrierCode)
		if err != nil {
			results[i] = carrierResult{carrier: cfg.CarrierCode, err: err}
			continue
		}

		wg.Add(1)
		go func(i int, provider providers.Provider, cfg *models.MerchantProviderConfig) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, s.carrierTimeout)
			defer cancel()

			quotes, err := provider.GetRates(callCtx, shipment, cfg)
			results[i] = carrierResult{carrier: cfg.CarrierCode, quotes: quotes, err: err}
		}(i, provider, cfg)
	}
	wg.Wait()

	var merged []models.RateQuote
	for _, result := range results {
		if result.err != nil {
			s.logger.Warn("Carrier rate call failed",
				logging.String("merchant_id", merchantID),
				logging.String("carrier", result.carrier),
				logging.Err(result.err))
			continue
		}
		merged = append(merged, result.quotes...)
	}
	return merged
}

func (s *Service) degrade(ctx context.Context, merchantID string, shipment *models.ShipmentDetails) []models.RateQuote {
	policy, err := s.configStore.GetFallbackPolicy(ctx, merchantID)
	if err != nil {
		s.logger.Warn("Failed to load fallback policy",
			logging.String("merchant_id", merchantID),
			logging.Err(err))
		return nil
	}
	return s.fallbackEngine.Quotes(ctx, merchantID, shipment, policy)
}

func (s *Service) publishRatesQuoted(ctx context.Context, merchantID string, result *RateResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeRatesQuoted,
		MerchantID: merchantID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish rates.quoted event",
			logging.String("merchant_id", merchantID),
			logging.Err(err))
	}
}
