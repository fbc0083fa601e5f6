package rules

import (
	"strconv"
	"strings"

	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
)

// Evaluator decides whether a single condition holds for a shipment. It is
// pure: no I/O, and business outcomes never surface as errors. An
// unsupported type/operator combination logs a warning and evaluates to
// false so a malformed rule cannot break unrelated rules.
type Evaluator struct {
	logger logging.Logger
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Evaluator{logger: logger}
}

// Satisfies reports whether the shipment satisfies the condition.
func (e *Evaluator) Satisfies(shipment *models.ShipmentDetails, cond Condition) bool {
	switch cond.Type {
	case ConditionTotalWeight:
		return e.compareNumeric(cond, shipment.TotalWeight())
	case ConditionTotalVolume:
		return e.compareNumeric(cond, shipment.TotalVolume())
	case ConditionOrderValue:
		return e.compareNumeric(cond, shipment.TotalOrderValue)
	case ConditionItemCount:
		return e.compareNumeric(cond, float64(shipment.ItemCount()))
	case ConditionTotalQuantity:
		return e.compareNumeric(cond, float64(shipment.TotalQuantity()))
	case ConditionDestinationCountry:
		return e.compareString(cond, shipment.Destination.Country)
	case ConditionDestinationState:
		return e.compareString(cond, shipment.Destination.State)
	case ConditionDestinationPostal:
		return e.compareString(cond, shipment.Destination.PostalCode)
	case ConditionProductType:
		return e.compareList(cond, shipment.ProductTypes())
	default:
		e.logger.Warn("Unsupported condition type",
			logging.String("type", string(cond.Type)),
		)
		return false
	}
}

// compareNumeric evaluates a condition against a numeric fact. The raw fact
// is used as-is; units are never coerced.
func (e *Evaluator) compareNumeric(cond Condition, fact float64) bool {
	switch cond.Operator {
	case OpBetween:
		return fact >= cond.MinValue && fact <= cond.MaxValue
	case OpIn, OpNotIn:
		found := false
		for _, raw := range cond.Values {
			val, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				e.logUnsupported(cond, "non-numeric value in set")
				return false
			}
			if fact == val {
				found = true
				break
			}
		}
		if cond.Operator == OpIn {
			return found
		}
		return !found
	case OpEQ, OpNE, OpGT, OpLT, OpGTE, OpLTE:
		val, err := strconv.ParseFloat(cond.Value, 64)
		if err != nil {
			e.logUnsupported(cond, "non-numeric value")
			return false
		}
		switch cond.Operator {
		case OpEQ:
			return fact == val
		case OpNE:
			return fact != val
		case OpGT:
			return fact > val
		case OpLT:
			return fact < val
		case OpGTE:
			return fact >= val
		case OpLTE:
			return fact <= val
		}
		return false
	case OpStartsWith, OpEndsWith, OpContains, OpNotContains:
		e.logUnsupported(cond, "string operator on numeric fact")
		return false
	default:
		e.logUnsupported(cond, "unknown operator")
		return false
	}
}

// compareString evaluates a condition against a string fact.
// Comparisons are case-insensitive, matching how carrier country and state
// codes arrive in practice.
func (e *Evaluator) compareString(cond Condition, fact string) bool {
	fact = strings.ToUpper(strings.TrimSpace(fact))
	value := strings.ToUpper(strings.TrimSpace(cond.Value))

	switch cond.Operator {
	case OpEQ:
		return fact == value
	case OpNE:
		return fact != value
	case OpStartsWith:
		return strings.HasPrefix(fact, value)
	case OpEndsWith:
		return strings.HasSuffix(fact, value)
	case OpContains:
		return strings.Contains(fact, value)
	case OpNotContains:
		return !strings.Contains(fact, value)
	case OpIn, OpNotIn:
		found := false
		for _, v := range cond.Values {
			if fact == strings.ToUpper(strings.TrimSpace(v)) {
				found = true
				break
			}
		}
		if cond.Operator == OpIn {
			return found
		}
		return !found
	case OpGT, OpLT, OpGTE, OpLTE, OpBetween:
		e.logUnsupported(cond, "numeric operator on string fact")
		return false
	default:
		e.logUnsupported(cond, "unknown operator")
		return false
	}
}

// compareList evaluates a condition against a list-valued fact such as the
// shipment's product types. EQ/NE test membership of the single value;
// IN/CONTAINS and NOT_IN/NOT_CONTAINS test set intersection with Values.
func (e *Evaluator) compareList(cond Condition, facts []string) bool {
	set := make(map[string]bool, len(facts))
	for _, f := range facts {
		set[strings.ToUpper(strings.TrimSpace(f))] = true
	}

	switch cond.Operator {
	case OpEQ:
		return set[strings.ToUpper(strings.TrimSpace(cond.Value))]
	case OpNE:
		return !set[strings.ToUpper(strings.TrimSpace(cond.Value))]
	case OpIn, OpContains:
		return e.intersects(set, cond.Values)
	case OpNotIn, OpNotContains:
		return !e.intersects(set, cond.Values)
	default:
		e.logUnsupported(cond, "operator not defined for list facts")
		return false
	}
}

func (e *Evaluator) intersects(set map[string]bool, values []string) bool {
	for _, v := range values {
		if set[strings.ToUpper(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

func (e *Evaluator) logUnsupported(cond Condition, reason string) {
	e.logger.Warn("Condition evaluated to false",
		logging.String("type", string(cond.Type)),
		logging.String("operator", string(cond.Operator)),
		logging.String("reason", reason),
	)
}
