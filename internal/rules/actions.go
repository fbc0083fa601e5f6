package rules

import (
	"github.com/google/uuid"

	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
)

// Eligibility is the carrier/service allow-list produced from matched rules.
// An entry with a nil service set allows every service of that carrier.
type Eligibility struct {
	carriers map[string]map[string]bool
}

// CarrierAllowed reports whether a carrier may be queried.
func (e *Eligibility) CarrierAllowed(carrier string) bool {
	_, ok := e.carriers[carrier]
	return ok
}

// ServiceAllowed reports whether a specific carrier service survives
// filtering. Unknown carriers are never allowed.
func (e *Eligibility) ServiceAllowed(carrier, service string) bool {
	services, ok := e.carriers[carrier]
	if !ok {
		return false
	}
	if services == nil {
		return true
	}
	return services[service]
}

// Carriers returns the eligible carrier codes.
func (e *Eligibility) Carriers() []string {
	out := make([]string, 0, len(e.carriers))
	for c := range e.carriers {
		out = append(out, c)
	}
	return out
}

// ResolveEligibility walks matched rules in priority order and produces the
// carrier/service allow-list. The first exclusive rule discards everything
// accumulated before it and becomes the sole source of truth. Without an
// exclusive rule, allow-lists are unioned; a rule naming no carriers means
// every enabled carrier. No matched rules at all also means every enabled
// carrier.
func ResolveEligibility(matched []*ShippingRule, enabledCarriers []string) *Eligibility {
	elig := &Eligibility{carriers: make(map[string]map[string]bool)}

	for _, rule := range matched {
		if rule.Action.IsExclusive {
			elig.carriers = make(map[string]map[string]bool)
			elig.addRule(&rule.Action, enabledCarriers)
			return elig
		}
		elig.addRule(&rule.Action, enabledCarriers)
	}

	if len(elig.carriers) == 0 {
		for _, c := range enabledCarriers {
			elig.carriers[c] = nil
		}
	}

	return elig
}

func (e *Eligibility) addRule(action *Action, enabledCarriers []string) {
	carriers := action.Carriers
	if len(carriers) == 0 {
		carriers = enabledCarriers
	}

	var services map[string]bool
	if len(action.Services) > 0 {
		services = make(map[string]bool, len(action.Services))
		for _, s := range action.Services {
			services[s] = true
		}
	}

	for _, c := range carriers {
		existing, ok := e.carriers[c]
		if ok && existing == nil {
			// A previous rule already allowed every service.
			continue
		}
		if services == nil {
			e.carriers[c] = nil
			continue
		}
		if existing == nil {
			existing = make(map[string]bool)
			e.carriers[c] = existing
		}
		for s := range services {
			existing[s] = true
		}
	}
}

// PricingTransform applies matched rules' cost actions to merged quotes.
type PricingTransform struct {
	matched []*ShippingRule
	logger  logging.Logger
}

// NewPricingTransform builds the pricing transform for one aggregation
// request from the matched rules, already in priority order.
func NewPricingTransform(matched []*ShippingRule, logger logging.Logger) *PricingTransform {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &PricingTransform{matched: matched, logger: logger}
}

// Apply filters quotes through the eligibility allow-list and re-prices the
// survivors. For each quote the first matched non-exclusive rule whose
// allow-list covers it wins; adjustments never stack. An exclusive rule's
// action applies to every quote instead. Transformed quotes receive a fresh
// id since they are derived, not original, quotes.
func (t *PricingTransform) Apply(quotes []models.RateQuote, elig *Eligibility) []models.RateQuote {
	out := make([]models.RateQuote, 0, len(quotes))

	var exclusive *ShippingRule
	for _, rule := range t.matched {
		if rule.Action.IsExclusive {
			exclusive = rule
			break
		}
	}

	for _, quote := range quotes {
		if !elig.ServiceAllowed(quote.CarrierCode, quote.ServiceCode) {
			continue
		}

		rule := exclusive
		if rule == nil {
			rule = t.firstCovering(quote)
		}
		if rule != nil {
			quote = t.applyAction(quote, rule)
		}

		out = append(out, quote)
	}

	return out
}

// firstCovering returns the highest-priority non-exclusive rule whose
// carrier/service allow-list covers the quote.
func (t *PricingTransform) firstCovering(quote models.RateQuote) *ShippingRule {
	for _, rule := range t.matched {
		if rule.Action.IsExclusive {
			continue
		}
		if actionCovers(&rule.Action, quote.CarrierCode, quote.ServiceCode) {
			return rule
		}
	}
	return nil
}

func actionCovers(action *Action, carrier, service string) bool {
	if len(action.Carriers) > 0 {
		found := false
		for _, c := range action.Carriers {
			if c == carrier {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(action.Services) > 0 {
		found := false
		for _, s := range action.Services {
			if s == service {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (t *PricingTransform) applyAction(quote models.RateQuote, rule *ShippingRule) models.RateQuote {
	action := &rule.Action
	changed := false

	if adj := action.Adjustment; adj != nil {
		amount, ok := t.adjust(quote, adj)
		if ok {
			quote.Amount = amount
			changed = true
		}
	}

	if action.OfferFreeShipping {
		quote.Amount = 0
		changed = true
	}

	if action.Message != "" {
		quote.Message = action.Message
		changed = true
	}

	if changed {
		quote.ID = uuid.NewString()
	}

	return quote
}

// adjust computes the adjusted amount. Fixed and override adjustments
// require the adjustment currency to match the quote's; a mismatch skips
// the adjustment with a warning rather than doing silent cross-currency
// math. The result is floored at zero.
func (t *PricingTransform) adjust(quote models.RateQuote, adj *CostAdjustment) (float64, bool) {
	switch adj.Kind {
	case AdjustFixedAdd, AdjustFixedSubtract, AdjustOverride:
		if adj.Currency != quote.Currency {
			t.logger.Warn("Skipping cost adjustment with mismatched currency",
				logging.String("adjustment_currency", adj.Currency),
				logging.String("quote_currency", quote.Currency),
				logging.String("carrier", quote.CarrierCode),
				logging.String("service", quote.ServiceCode),
			)
			return 0, false
		}
	}

	var amount float64
	switch adj.Kind {
	case AdjustFixedAdd:
		amount = quote.Amount + adj.Amount
	case AdjustFixedSubtract:
		amount = quote.Amount - adj.Amount
	case AdjustPercentageAdd:
		amount = quote.Amount * (1 + adj.Amount/100)
	case AdjustPercentageSubtract:
		amount = quote.Amount * (1 - adj.Amount/100)
	case AdjustOverride:
		amount = adj.Amount
	default:
		t.logger.Warn("Unknown adjustment kind",
			logging.String("kind", string(adj.Kind)),
		)
		return 0, false
	}

	if amount < 0 {
		amount = 0
	}
	return amount, true
}
