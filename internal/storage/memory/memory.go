// Package memory provides an in-memory Store used in tests and for local
// development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/rules"
)

// Store is a mutex-guarded in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	rules    map[string]*rules.ShippingRule              // rule id -> rule
	configs  map[string]*models.MerchantProviderConfig   // merchant|carrier -> config
	policies map[string]*models.FallbackPolicy           // merchant -> policy
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		rules:    make(map[string]*rules.ShippingRule),
		configs:  make(map[string]*models.MerchantProviderConfig),
		policies: make(map[string]*models.FallbackPolicy),
	}
}

func configKey(merchantID, carrierCode string) string {
	return merchantID + "|" + carrierCode
}

// CreateRule stores a new rule.
func (s *Store) CreateRule(ctx context.Context, rule *rules.ShippingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[rule.ID]; exists {
		return errors.ValidationError("rule id already exists: " + rule.ID)
	}
	now := time.Now().UTC()
	stored := *rule
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.rules[rule.ID] = &stored
	return nil
}

// GetRule returns a merchant's rule by id.
func (s *Store) GetRule(ctx context.Context, merchantID, ruleID string) (*rules.ShippingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[ruleID]
	if !ok || rule.MerchantID != merchantID {
		return nil, errors.NotFoundError("shipping rule " + ruleID)
	}
	copied := *rule
	return &copied, nil
}

// ListRules returns all of a merchant's rules sorted by priority.
func (s *Store) ListRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error) {
	return s.listRules(merchantID, false), nil
}

// ListActiveRules returns a merchant's active rules sorted by priority.
func (s *Store) ListActiveRules(ctx context.Context, merchantID string) ([]*rules.ShippingRule, error) {
	return s.listRules(merchantID, true), nil
}

func (s *Store) listRules(merchantID string, activeOnly bool) []*rules.ShippingRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*rules.ShippingRule
	for _, rule := range s.rules {
		if rule.MerchantID != merchantID {
			continue
		}
		if activeOnly && !rule.IsActive {
			continue
		}
		copied := *rule
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// UpdateRule replaces an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule *rules.ShippingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok || existing.MerchantID != rule.MerchantID {
		return errors.NotFoundError("shipping rule " + rule.ID)
	}
	stored := *rule
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.rules[rule.ID] = &stored
	return nil
}

// DeleteRule removes a merchant's rule.
func (s *Store) DeleteRule(ctx context.Context, merchantID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[ruleID]
	if !ok || rule.MerchantID != merchantID {
		return errors.NotFoundError("shipping rule " + ruleID)
	}
	delete(s.rules, ruleID)
	return nil
}

// UpsertProviderConfig creates or replaces a carrier config.
func (s *Store) UpsertProviderConfig(ctx context.Context, cfg *models.MerchantProviderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cfg
	s.configs[configKey(cfg.MerchantID, cfg.CarrierCode)] = &copied
	return nil
}

// GetProviderConfig returns one carrier config.
func (s *Store) GetProviderConfig(ctx context.Context, merchantID, carrierCode string) (*models.MerchantProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configKey(merchantID, carrierCode)]
	if !ok {
		return nil, errors.NotFoundError("provider config for " + carrierCode)
	}
	copied := *cfg
	return &copied, nil
}

// ListProviderConfigs returns all of a merchant's carrier configs sorted by
// carrier code.
func (s *Store) ListProviderConfigs(ctx context.Context, merchantID string) ([]*models.MerchantProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MerchantProviderConfig
	for _, cfg := range s.configs {
		if cfg.MerchantID != merchantID {
			continue
		}
		copied := *cfg
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarrierCode < out[j].CarrierCode })
	return out, nil
}

// DeleteProviderConfig removes a carrier config.
func (s *Store) DeleteProviderConfig(ctx context.Context, merchantID, carrierCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := configKey(merchantID, carrierCode)
	if _, ok := s.configs[key]; !ok {
		return errors.NotFoundError("provider config for " + carrierCode)
	}
	delete(s.configs, key)
	return nil
}

// SetFallbackPolicy stores the merchant's fallback policy.
func (s *Store) SetFallbackPolicy(ctx context.Context, merchantID string, policy *models.FallbackPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *policy
	s.policies[merchantID] = &copied
	return nil
}

// GetFallbackPolicy returns the merchant's fallback policy, or nil when
// none is configured.
func (s *Store) GetFallbackPolicy(ctx context.Context, merchantID string) (*models.FallbackPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[merchantID]
	if !ok {
		return nil, nil
	}
	copied := *policy
	return &copied, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
