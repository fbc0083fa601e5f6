package rules

import (
	"context"
	"sort"

	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
)

// Store is the read interface the engine loads rules through. Rules arrive
// already validated; the engine never writes.
type Store interface {
	ListActiveRules(ctx context.Context, merchantID string) ([]*ShippingRule, error)
}

// Engine determines which of a merchant's active rules match a shipment.
type Engine struct {
	store     Store
	evaluator *Evaluator
	logger    logging.Logger
}

// NewEngine creates a rule engine backed by the given store.
func NewEngine(store Store, evaluator *Evaluator, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Engine{
		store:     store,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Evaluate returns the merchant's matching rules in ascending priority
// order. Rules are fetched fresh on every call so an edit takes effect
// immediately; rule lists are small and mutate rarely, so there is nothing
// worth caching here.
//
// A rule matches when every condition is satisfied; a rule with no
// conditions always matches. Rules flagged as rule-level fallbacks are held
// out of normal matching and returned only when no regular rule matched.
func (e *Engine) Evaluate(ctx context.Context, merchantID string, shipment *models.ShipmentDetails) ([]*ShippingRule, error) {
	rules, err := e.store.ListActiveRules(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	var matched, fallbackMatched []*ShippingRule
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if !e.matches(rule, shipment) {
			continue
		}
		if rule.Action.IsRuleFallback {
			fallbackMatched = append(fallbackMatched, rule)
		} else {
			matched = append(matched, rule)
		}
	}

	if len(matched) == 0 && len(fallbackMatched) > 0 {
		e.logger.Debug("No regular rules matched, using fallback rules",
			logging.String("merchant_id", merchantID),
			logging.Int("fallback_rules", len(fallbackMatched)),
		)
		return fallbackMatched, nil
	}

	return matched, nil
}

func (e *Engine) matches(rule *ShippingRule, shipment *models.ShipmentDetails) bool {
	for _, cond := range rule.Conditions {
		if !e.evaluator.Satisfies(shipment, cond) {
			return false
		}
	}
	return true
}
