// Package ratecache persists two related things across requests: snapshots
// of successful rate responses keyed by a shipment digest (replayed by the
// fallback engine when live rating fails) and per-quote redemption entries
// that let a quote ID be turned into a label later.
package ratecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"shipping-gateway/internal/common/cache"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
)

const (
	ratePrefix       = "rates:"
	redemptionPrefix = "redemption:"

	// DefaultSnapshotTTL bounds how stale a replayed rate snapshot can be.
	DefaultSnapshotTTL = 24 * time.Hour

	// DefaultRedemptionTTL bounds how long a quoted rate stays redeemable.
	DefaultRedemptionTTL = 48 * time.Hour
)

// digestInput is the canonical subset of a shipment used for cache identity.
// Volatile fields (ship date, line-item detail) are excluded so that the
// same lane and parcel set hits the same snapshot.
type digestInput struct {
	Origin          models.Address  `json:"origin"`
	Destination     models.Address  `json:"destination"`
	Parcels         []models.Parcel `json:"parcels"`
	TotalOrderValue float64         `json:"total_order_value"`
	Currency        string          `json:"currency"`
}

// ShipmentDigest returns a stable hex digest identifying a shipment for
// rate-snapshot purposes.
func ShipmentDigest(shipment *models.ShipmentDetails) string {
	input := digestInput{
		Origin:          shipment.Origin,
		Destination:     shipment.Destination,
		Parcels:         shipment.Parcels,
		TotalOrderValue: shipment.TotalOrderValue,
		Currency:        shipment.Currency,
	}
	// Struct field order fixes the JSON key order, so the encoding is
	// canonical without extra sorting.
	payload, _ := json.Marshal(input)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// RedemptionEntry is what a quote ID resolves to at label time.
type RedemptionEntry struct {
	QuoteID      string                  `json:"quote_id"`
	MerchantID   string                  `json:"merchant_id"`
	CarrierCode  string                  `json:"carrier_code"`
	ServiceCode  string                  `json:"service_code"`
	Amount       float64                 `json:"amount"`
	Currency     string                  `json:"currency"`
	ProviderData json.RawMessage         `json:"provider_data,omitempty"`
	Shipment     *models.ShipmentDetails `json:"shipment,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

type snapshot struct {
	Quotes   []models.RateQuote `json:"quotes"`
	SavedAt  time.Time          `json:"saved_at"`
	Currency string             `json:"currency"`
}

// RateCache stores snapshots and redemption entries in the configured
// cache backend (local or Redis).
type RateCache struct {
	cache         cache.Cache
	snapshotTTL   time.Duration
	redemptionTTL time.Duration
	logger        logging.Logger
}

// New creates a RateCache. Zero TTLs select the defaults.
func New(backend cache.Cache, snapshotTTL, redemptionTTL time.Duration, logger logging.Logger) *RateCache {
	if snapshotTTL <= 0 {
		snapshotTTL = DefaultSnapshotTTL
	}
	if redemptionTTL <= 0 {
		redemptionTTL = DefaultRedemptionTTL
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RateCache{
		cache:         backend,
		snapshotTTL:   snapshotTTL,
		redemptionTTL: redemptionTTL,
		logger:        logger,
	}
}

// SaveSnapshot stores the quotes of a successful aggregation under the
// shipment digest. Failures are logged, not returned; caching is best
// effort and must never fail a rate request.
func (rc *RateCache) SaveSnapshot(ctx context.Context, merchantID string, shipment *models.ShipmentDetails, quotes []models.RateQuote) {
	if len(quotes) == 0 {
		return
	}
	payload, err := json.Marshal(snapshot{
		Quotes:   quotes,
		SavedAt:  time.Now().UTC(),
		Currency: shipment.Currency,
	})
	if err != nil {
		rc.logger.Warn("Failed to marshal rate snapshot", logging.Err(err))
		return
	}
	key := ratePrefix + merchantID + ":" + ShipmentDigest(shipment)
	if err := rc.cache.Set(ctx, key, payload, rc.snapshotTTL); err != nil {
		rc.logger.Warn("Failed to store rate snapshot", logging.String("key", key), logging.Err(err))
	}
}

// GetSnapshot returns the cached quotes for a shipment and the time they
// were saved, or false when no usable snapshot exists. Callers with a
// freshness bound tighter than the cache TTL check the saved-at time.
func (rc *RateCache) GetSnapshot(ctx context.Context, merchantID string, shipment *models.ShipmentDetails) ([]models.RateQuote, time.Time, bool) {
	key := ratePrefix + merchantID + ":" + ShipmentDigest(shipment)
	payload, found := rc.cache.Get(ctx, key)
	if !found {
		return nil, time.Time{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		rc.logger.Warn("Discarding corrupt rate snapshot", logging.String("key", key), logging.Err(err))
		return nil, time.Time{}, false
	}
	return snap.Quotes, snap.SavedAt, len(snap.Quotes) > 0
}

// SaveRedemptions stores one redemption entry per returned quote so any of
// them can be redeemed into a label until the TTL expires. Synthetic
// fallback quotes are skipped: they are not redeemable.
func (rc *RateCache) SaveRedemptions(ctx context.Context, merchantID string, shipment *models.ShipmentDetails, quotes []models.RateQuote) {
	now := time.Now().UTC()
	for _, quote := range quotes {
		if quote.CarrierCode == models.FallbackCarrierCode {
			continue
		}
		entry := RedemptionEntry{
			QuoteID:      quote.ID,
			MerchantID:   merchantID,
			CarrierCode:  quote.CarrierCode,
			ServiceCode:  quote.ServiceCode,
			Amount:       quote.Amount,
			Currency:     quote.Currency,
			ProviderData: quote.OriginalProviderRate,
			Shipment:     shipment,
			CreatedAt:    now,
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			rc.logger.Warn("Failed to marshal redemption entry", logging.String("quote_id", quote.ID), logging.Err(err))
			continue
		}
		if err := rc.cache.Set(ctx, redemptionPrefix+quote.ID, payload, rc.redemptionTTL); err != nil {
			rc.logger.Warn("Failed to store redemption entry", logging.String("quote_id", quote.ID), logging.Err(err))
		}
	}
}

// GetRedemption resolves a quote ID into its redemption entry. Unknown or
// expired IDs return a SelectedRateInvalid error.
func (rc *RateCache) GetRedemption(ctx context.Context, quoteID string) (*RedemptionEntry, error) {
	payload, found := rc.cache.Get(ctx, redemptionPrefix+quoteID)
	if !found {
		return nil, errors.SelectedRateInvalidError(quoteID)
	}
	var entry RedemptionEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		rc.logger.Warn("Discarding corrupt redemption entry", logging.String("quote_id", quoteID), logging.Err(err))
		return nil, errors.SelectedRateInvalidError(quoteID)
	}
	return &entry, nil
}
