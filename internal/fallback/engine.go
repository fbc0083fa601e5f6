// Package fallback produces degraded rate responses when live carrier
// rating yields nothing. The merchant's policy decides what degradation
// looks like: nothing at all, a single flat-rate quote, or a replay of the
// last cached rates for the same shipment.
package fallback

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/ratecache"
)

// Engine applies a merchant's fallback policy.
type Engine struct {
	rateCache *ratecache.RateCache
	logger    logging.Logger
}

// New creates a fallback engine.
func New(rateCache *ratecache.RateCache, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{rateCache: rateCache, logger: logger}
}

// Quotes returns the degraded quote list for a shipment according to the
// policy. A nil policy behaves as disabled. Failures inside a fallback mode
// degrade further to an empty list, never to an error: fallback is the last
// resort, there is nothing left to fall back to.
func (e *Engine) Quotes(ctx context.Context, merchantID string, shipment *models.ShipmentDetails, policy *models.FallbackPolicy) []models.RateQuote {
	if policy == nil {
		return nil
	}

	switch policy.Kind {
	case models.FallbackDisabled:
		return nil

	case models.FallbackFlatRate:
		return e.flatRate(merchantID, policy)

	case models.FallbackCachedRates:
		return e.cachedRates(ctx, merchantID, shipment, policy)

	default:
		e.logger.Warn("Unknown fallback policy kind, treating as disabled",
			logging.String("merchant_id", merchantID),
			logging.String("kind", string(policy.Kind)))
		return nil
	}
}

func (e *Engine) flatRate(merchantID string, policy *models.FallbackPolicy) []models.RateQuote {
	if policy.FlatRateAmount <= 0 || policy.Currency == "" {
		e.logger.Warn("Flat-rate fallback policy is not fully configured",
			logging.String("merchant_id", merchantID),
			logging.Float64("amount", policy.FlatRateAmount),
			logging.String("currency", policy.Currency))
		return nil
	}
	return []models.RateQuote{{
		ID:          uuid.NewString(),
		CarrierCode: models.FallbackCarrierCode,
		ServiceCode: "flat_rate",
		ServiceName: "Flat Rate Shipping",
		Amount:      policy.FlatRateAmount,
		Currency:    policy.Currency,
		Message:     "Live carrier rates are temporarily unavailable.",
	}}
}

func (e *Engine) cachedRates(ctx context.Context, merchantID string, shipment *models.ShipmentDetails, policy *models.FallbackPolicy) []models.RateQuote {
	if e.rateCache == nil {
		return nil
	}
	cached, savedAt, found := e.rateCache.GetSnapshot(ctx, merchantID, shipment)
	if !found {
		e.logger.Info("No cached rates available for fallback",
			logging.String("merchant_id", merchantID))
		return nil
	}

	// The policy TTL bounds snapshot age independently of the cache TTL.
	if policy.TTLSeconds > 0 {
		maxAge := time.Duration(policy.TTLSeconds) * time.Second
		if age := time.Since(savedAt); age > maxAge {
			e.logger.Info("Cached rates are older than the fallback policy allows",
				logging.String("merchant_id", merchantID),
				logging.Duration("age", age),
				logging.Duration("max_age", maxAge))
			return nil
		}
	}

	// Replayed quotes get fresh identities and are re-attributed to the
	// fallback carrier so they cannot be redeemed against the original
	// carrier at a stale price.
	quotes := make([]models.RateQuote, 0, len(cached))
	for _, quote := range cached {
		quote.ID = uuid.NewString()
		quote.CarrierCode = models.FallbackCarrierCode
		quote.ServiceName = quote.ServiceName + " (cached)"
		quote.Message = "Estimated from recent rates; live carrier rates are temporarily unavailable."
		quote.OriginalProviderRate = nil
		quotes = append(quotes, quote)
	}
	return quotes
}
