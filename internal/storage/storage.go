// Package storage defines the persistence contract for merchant shipping
// configuration: shipping rules, per-carrier provider configs, and fallback
// policies. Implementations live in the sqlite, postgres, and memory
// subpackages.
package storage

import (
	"context"

	"shipping-gateway/internal/models"
	"shipping-gateway/internal/rules"
)

// Store is the full persistence interface. All reads and writes are scoped
// to a merchant; no operation crosses merchant boundaries.
type Store interface {
	// Shipping rules.
	CreateRule(ctx context.Context, rule *rules.ShippingRule) error
	GetRule(ctx context.Context, merchantID, ruleID string) (*rules.ShippingRule, error)
	ListRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error)
	ListActiveRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error)
	UpdateRule(ctx context.Context, rule *rules.ShippingRule) error
	DeleteRule(ctx context.Context, merchantID, ruleID string) error

	// Carrier provider configuration.
	UpsertProviderConfig(ctx context.Context, cfg *models.MerchantProviderConfig) error
	GetProviderConfig(ctx context.Context, merchantID, carrierCode string) (*models.MerchantProviderConfig, error)
	ListProviderConfigs(ctx context.Context, merchantID string) ([]*models.MerchantProviderConfig, error)
	DeleteProviderConfig(ctx context.Context, merchantID, carrierCode string) error

	// Fallback policy. One policy per merchant; Get returns nil, nil when
	// the merchant has none.
	SetFallbackPolicy(ctx context.Context, merchantID string, policy *models.FallbackPolicy) error
	GetFallbackPolicy(ctx context.Context, merchantID string) (*models.FallbackPolicy, error)

	Ping(ctx context.Context) error
	Close() error
}
