// Package rules implements merchant shipping rules: condition evaluation
// against shipment facts, priority-ordered rule matching, and the
// translation of matched rules into carrier eligibility and quote pricing.
package rules

import "time"

// ConditionType selects which shipment-derived fact a condition compares.
type ConditionType string

const (
	ConditionTotalWeight        ConditionType = "TOTAL_WEIGHT"
	ConditionTotalVolume        ConditionType = "TOTAL_VOLUME"
	ConditionOrderValue         ConditionType = "ORDER_VALUE"
	ConditionItemCount          ConditionType = "ITEM_COUNT"
	ConditionTotalQuantity      ConditionType = "TOTAL_QUANTITY"
	ConditionDestinationCountry ConditionType = "DESTINATION_COUNTRY"
	ConditionDestinationState   ConditionType = "DESTINATION_STATE"
	ConditionDestinationPostal  ConditionType = "DESTINATION_POSTAL"
	ConditionProductType        ConditionType = "PRODUCT_TYPE"
)

// Operator is the comparison applied between a shipment fact and the
// condition's value(s).
type Operator string

const (
	OpEQ          Operator = "EQ"
	OpNE          Operator = "NE"
	OpGT          Operator = "GT"
	OpLT          Operator = "LT"
	OpGTE         Operator = "GTE"
	OpLTE         Operator = "LTE"
	OpBetween     Operator = "BETWEEN"
	OpIn          Operator = "IN"
	OpNotIn       Operator = "NOT_IN"
	OpStartsWith  Operator = "STARTS_WITH"
	OpEndsWith    Operator = "ENDS_WITH"
	OpContains    Operator = "CONTAINS"
	OpNotContains Operator = "NOT_CONTAINS"
)

// Condition is a single predicate over shipment facts. Which value field is
// meaningful depends on the operator: scalar operators read Value, BETWEEN
// reads MinValue/MaxValue (inclusive), set operators read Values.
//
// Numeric comparisons use the raw numeric fact with no unit coercion; rule
// authors are responsible for matching units to the shipment's declared
// units.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    string        `json:"value,omitempty"`
	MinValue float64       `json:"min_value,omitempty"`
	MaxValue float64       `json:"max_value,omitempty"`
	Values   []string      `json:"values,omitempty"`
}

// AdjustmentKind selects how a matched rule re-prices a quote.
type AdjustmentKind string

const (
	AdjustFixedAdd           AdjustmentKind = "FIXED_ADD"
	AdjustFixedSubtract      AdjustmentKind = "FIXED_SUBTRACT"
	AdjustPercentageAdd      AdjustmentKind = "PERCENTAGE_ADD"
	AdjustPercentageSubtract AdjustmentKind = "PERCENTAGE_SUBTRACT"
	AdjustOverride           AdjustmentKind = "OVERRIDE"
)

// CostAdjustment re-prices a quote. Fixed and override adjustments carry a
// currency and are skipped when it differs from the quote's; percentage
// adjustments are currency-agnostic.
type CostAdjustment struct {
	Kind     AdjustmentKind `json:"kind"`
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency,omitempty"`
}

// Action is what a matched rule does: narrow the carrier/service allow-list
// and optionally transform pricing.
type Action struct {
	// Carriers is the carrier allow-list. Empty means all enabled carriers.
	Carriers []string `json:"carriers,omitempty"`
	// Services is the service-code allow-list, scoped to Carriers. Empty
	// means every service of the allowed carriers.
	Services []string `json:"services,omitempty"`
	// Adjustment optionally re-prices covered quotes.
	Adjustment *CostAdjustment `json:"adjustment,omitempty"`
	// IsExclusive makes this rule the sole source of eligibility and pricing,
	// discarding every other matched rule.
	IsExclusive bool `json:"is_exclusive"`
	// IsRuleFallback holds the rule out of normal matching; it is consulted
	// only when no regular rule matched.
	IsRuleFallback bool `json:"is_rule_fallback"`
	// OfferFreeShipping forces covered quotes to zero regardless of any
	// adjustment.
	OfferFreeShipping bool `json:"offer_free_shipping"`
	// Message is attached to covered quotes for display.
	Message string `json:"message,omitempty"`
}

// ShippingRule is a merchant-scoped rule. Conditions are AND-ed; a rule with
// zero conditions always matches. Lower priority is evaluated first. Rules
// are read-only during aggregation.
type ShippingRule struct {
	ID         string      `json:"id"`
	MerchantID string      `json:"merchant_id"`
	Name       string      `json:"name"`
	Priority   int         `json:"priority"`
	IsActive   bool        `json:"is_active"`
	Conditions []Condition `json:"conditions"`
	Action     Action      `json:"action"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
