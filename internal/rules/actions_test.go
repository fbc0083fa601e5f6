package rules

import (
	"sort"
	"testing"

	"shipping-gateway/internal/models"
)

var enabled = []string{"fedex", "ups", "dhl"}

func TestResolveEligibility_NoRules(t *testing.T) {
	elig := ResolveEligibility(nil, enabled)

	got := elig.Carriers()
	sort.Strings(got)
	if len(got) != 3 {
		t.Fatalf("no matched rules should allow all enabled carriers, got %v", got)
	}
	if !elig.ServiceAllowed("fedex", "FEDEX_GROUND") {
		t.Error("all services should be allowed when no rules matched")
	}
}

func TestResolveEligibility_Union(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "a", Action: Action{Carriers: []string{"fedex"}, Services: []string{"FEDEX_GROUND"}}},
		{ID: "b", Action: Action{Carriers: []string{"ups"}}},
	}

	elig := ResolveEligibility(matched, enabled)

	if !elig.CarrierAllowed("fedex") || !elig.CarrierAllowed("ups") {
		t.Error("union should allow both fedex and ups")
	}
	if elig.CarrierAllowed("dhl") {
		t.Error("dhl was named by no rule and should not be eligible")
	}
	if !elig.ServiceAllowed("fedex", "FEDEX_GROUND") {
		t.Error("listed fedex service should be allowed")
	}
	if elig.ServiceAllowed("fedex", "FEDEX_2_DAY") {
		t.Error("unlisted fedex service should be filtered")
	}
	if !elig.ServiceAllowed("ups", "GROUND") {
		t.Error("ups has no service filter, every service should be allowed")
	}
}

func TestResolveEligibility_ExclusiveDiscardsAccumulated(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "a", Priority: 1, Action: Action{Carriers: []string{"fedex"}}},
		{ID: "x", Priority: 2, Action: Action{IsExclusive: true, Carriers: []string{"dhl"}, Services: []string{"EXPRESS"}}},
		{ID: "b", Priority: 3, Action: Action{Carriers: []string{"ups"}}},
	}

	elig := ResolveEligibility(matched, enabled)

	if elig.CarrierAllowed("fedex") || elig.CarrierAllowed("ups") {
		t.Error("exclusive rule must discard every other allow-list")
	}
	if !elig.ServiceAllowed("dhl", "EXPRESS") {
		t.Error("exclusive rule's own allow-list must hold")
	}
	if elig.ServiceAllowed("dhl", "ECONOMY") {
		t.Error("services outside the exclusive allow-list must be filtered")
	}
}

func TestResolveEligibility_RuleWithoutCarriersMeansAllEnabled(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "a", Action: Action{Adjustment: &CostAdjustment{Kind: AdjustPercentageAdd, Amount: 5}}},
	}

	elig := ResolveEligibility(matched, enabled)

	for _, c := range enabled {
		if !elig.CarrierAllowed(c) {
			t.Errorf("carrier %s should be eligible", c)
		}
	}
}

func quote(carrier, service string, amount float64) models.RateQuote {
	return models.RateQuote{
		ID:          "orig-" + carrier + "-" + service,
		CarrierCode: carrier,
		ServiceCode: service,
		ServiceName: service,
		Amount:      amount,
		Currency:    "USD",
	}
}

func allEligible() *Eligibility {
	return ResolveEligibility(nil, enabled)
}

func TestPricingTransform_PercentageSubtract(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "discount", Action: Action{
			Adjustment: &CostAdjustment{Kind: AdjustPercentageSubtract, Amount: 10},
		}},
	}

	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("fedex", "GROUND", 20.00)}, allEligible())

	if len(out) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(out))
	}
	if out[0].Amount != 18.00 {
		t.Errorf("10%% off $20.00 = %v, want 18.00", out[0].Amount)
	}
	if out[0].ID == "orig-fedex-GROUND" {
		t.Error("transformed quote must receive a new id")
	}
}

func TestPricingTransform_FlooredAtZero(t *testing.T) {
	tests := []struct {
		name string
		adj  CostAdjustment
	}{
		{"fixed subtract past zero", CostAdjustment{Kind: AdjustFixedSubtract, Amount: 100, Currency: "USD"}},
		{"percentage subtract over 100", CostAdjustment{Kind: AdjustPercentageSubtract, Amount: 150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched := []*ShippingRule{{ID: "r", Action: Action{Adjustment: &tt.adj}}}
			out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("ups", "GROUND", 8.00)}, allEligible())

			if len(out) != 1 {
				t.Fatalf("expected 1 quote, got %d", len(out))
			}
			if out[0].Amount != 0 {
				t.Errorf("adjusted amount = %v, want floor at 0", out[0].Amount)
			}
		})
	}
}

func TestPricingTransform_CurrencyMismatchSkipsFixed(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "eur-discount", Action: Action{
			Adjustment: &CostAdjustment{Kind: AdjustFixedSubtract, Amount: 5, Currency: "EUR"},
		}},
	}

	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("dhl", "EXPRESS", 30.00)}, allEligible())

	if out[0].Amount != 30.00 {
		t.Errorf("mismatched currency fixed adjustment must be skipped, amount = %v", out[0].Amount)
	}
	if out[0].ID != "orig-dhl-EXPRESS" {
		t.Error("untouched quote keeps its id")
	}
}

func TestPricingTransform_OverrideRequiresCurrencyMatch(t *testing.T) {
	t.Run("matching currency applies", func(t *testing.T) {
		matched := []*ShippingRule{{ID: "r", Action: Action{
			Adjustment: &CostAdjustment{Kind: AdjustOverride, Amount: 9.99, Currency: "USD"},
		}}}
		out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("fedex", "GROUND", 20.00)}, allEligible())
		if out[0].Amount != 9.99 {
			t.Errorf("override amount = %v, want 9.99", out[0].Amount)
		}
	})

	t.Run("mismatched currency skips", func(t *testing.T) {
		matched := []*ShippingRule{{ID: "r", Action: Action{
			Adjustment: &CostAdjustment{Kind: AdjustOverride, Amount: 9.99, Currency: "GBP"},
		}}}
		out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("fedex", "GROUND", 20.00)}, allEligible())
		if out[0].Amount != 20.00 {
			t.Errorf("override with wrong currency must be skipped, amount = %v", out[0].Amount)
		}
	})
}

func TestPricingTransform_FreeShippingForcesZero(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "free", Action: Action{
			OfferFreeShipping: true,
			// Even an additive adjustment cannot beat free shipping.
			Adjustment: &CostAdjustment{Kind: AdjustFixedAdd, Amount: 3, Currency: "USD"},
			Message:    "Free shipping on us",
		}},
	}

	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{quote("ups", "GROUND", 12.00)}, allEligible())

	if out[0].Amount != 0 {
		t.Errorf("free shipping amount = %v, want 0", out[0].Amount)
	}
	if out[0].Message != "Free shipping on us" {
		t.Errorf("message = %q, want rule message", out[0].Message)
	}
}

func TestPricingTransform_FirstMatchWinsPerQuote(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "first", Priority: 1, Action: Action{
			Carriers:   []string{"fedex"},
			Adjustment: &CostAdjustment{Kind: AdjustPercentageSubtract, Amount: 50},
		}},
		{ID: "second", Priority: 2, Action: Action{
			Carriers:   []string{"fedex"},
			Adjustment: &CostAdjustment{Kind: AdjustPercentageSubtract, Amount: 50},
		}},
		{ID: "ups-only", Priority: 3, Action: Action{
			Carriers:   []string{"ups"},
			Adjustment: &CostAdjustment{Kind: AdjustFixedAdd, Amount: 1, Currency: "USD"},
		}},
	}

	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{
		quote("fedex", "GROUND", 20.00),
		quote("ups", "GROUND", 10.00),
	}, allEligible())

	if out[0].Amount != 10.00 {
		t.Errorf("fedex quote = %v, want 10.00 (one 50%% discount, not two stacked)", out[0].Amount)
	}
	if out[1].Amount != 11.00 {
		t.Errorf("ups quote = %v, want 11.00 (covered by ups-only rule)", out[1].Amount)
	}
}

func TestPricingTransform_ExclusiveAppliesToEveryQuote(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "x", Action: Action{
			IsExclusive: true,
			Adjustment:  &CostAdjustment{Kind: AdjustPercentageAdd, Amount: 100},
		}},
		{ID: "ignored", Action: Action{
			Carriers:   []string{"ups"},
			Adjustment: &CostAdjustment{Kind: AdjustOverride, Amount: 1, Currency: "USD"},
		}},
	}

	elig := ResolveEligibility(matched, enabled)
	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{
		quote("fedex", "GROUND", 5.00),
		quote("ups", "GROUND", 7.00),
	}, elig)

	if len(out) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(out))
	}
	if out[0].Amount != 10.00 || out[1].Amount != 14.00 {
		t.Errorf("exclusive action must apply to every quote, got %v and %v", out[0].Amount, out[1].Amount)
	}
}

func TestPricingTransform_FiltersIneligibleQuotes(t *testing.T) {
	matched := []*ShippingRule{
		{ID: "fedex-only", Action: Action{Carriers: []string{"fedex"}, Services: []string{"GROUND"}}},
	}

	elig := ResolveEligibility(matched, enabled)
	out := NewPricingTransform(matched, nil).Apply([]models.RateQuote{
		quote("fedex", "GROUND", 5.00),
		quote("fedex", "PRIORITY_OVERNIGHT", 45.00),
		quote("ups", "GROUND", 7.00),
	}, elig)

	if len(out) != 1 {
		t.Fatalf("expected only the eligible fedex GROUND quote, got %d quotes", len(out))
	}
	if out[0].CarrierCode != "fedex" || out[0].ServiceCode != "GROUND" {
		t.Errorf("surviving quote = %s/%s", out[0].CarrierCode, out[0].ServiceCode)
	}
}
