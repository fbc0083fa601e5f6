package models

// MerchantProviderConfig holds a merchant's credentials and settings for one
// carrier. Resolved once per aggregation request and treated as read-only.
type MerchantProviderConfig struct {
	MerchantID    string `json:"merchant_id"`
	CarrierCode   string `json:"carrier_code"`
	APIKey        string `json:"api_key,omitempty"`
	APISecret     string `json:"api_secret,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Enabled       bool   `json:"enabled"`
	// CustomProperties carries carrier-specific settings such as aggregator
	// sub-account ids.
	CustomProperties map[string]string `json:"custom_properties,omitempty"`
}

// FallbackPolicyKind selects the degradation behavior when no real quotes
// survive rule filtering.
type FallbackPolicyKind string

const (
	FallbackDisabled    FallbackPolicyKind = "DISABLED"
	FallbackFlatRate    FallbackPolicyKind = "FLAT_RATE"
	FallbackCachedRates FallbackPolicyKind = "CACHED_RATES"
)

// FallbackPolicy is read once at aggregation start and never mutated by the
// engine.
type FallbackPolicy struct {
	Kind           FallbackPolicyKind `json:"kind"`
	FlatRateAmount float64            `json:"flat_rate_amount,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	TTLSeconds     int                `json:"ttl_seconds,omitempty"`
}
