package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/rules"
)

// ListRules returns every rule owned by the calling merchant, ordered by
// priority.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	list, err := h.store.ListRules(r.Context(), merchantID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if list == nil {
		list = []*rules.ShippingRule{}
	}
	h.sendJSON(w, http.StatusOK, list)
}

// CreateRule stores a new shipping rule for the calling merchant. The server
// assigns the rule ID; any client-supplied ID or merchant ID is ignored.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	var rule rules.ShippingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := validateRule(&rule); err != nil {
		h.sendError(w, err)
		return
	}

	rule.ID = uuid.New().String()
	rule.MerchantID = merchantID
	rule.CreatedAt = time.Now().UTC()
	rule.UpdatedAt = rule.CreatedAt

	if err := h.store.CreateRule(r.Context(), &rule); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, &rule)
}

// GetRule returns a single rule by ID, scoped to the calling merchant.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	ruleID := mux.Vars(r)["id"]

	rule, err := h.store.GetRule(r.Context(), merchantID, ruleID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, rule)
}

// UpdateRule replaces an existing rule. The path ID wins over any ID in the
// body.
func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	ruleID := mux.Vars(r)["id"]

	var rule rules.ShippingRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := validateRule(&rule); err != nil {
		h.sendError(w, err)
		return
	}

	rule.ID = ruleID
	rule.MerchantID = merchantID
	rule.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateRule(r.Context(), &rule); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, &rule)
}

// DeleteRule removes a rule owned by the calling merchant.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	ruleID := mux.Vars(r)["id"]

	if err := h.store.DeleteRule(r.Context(), merchantID, ruleID); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusNoContent, nil)
}

func validateRule(rule *rules.ShippingRule) error {
	if rule.Name == "" {
		return errors.ValidationError("rule name is required")
	}
	for i, cond := range rule.Conditions {
		if cond.Type == "" {
			return errors.ValidationError("condition type is required").
				WithContext("condition_index", i)
		}
		if cond.Operator == "" {
			return errors.ValidationError("condition operator is required").
				WithContext("condition_index", i)
		}
		if cond.Operator == rules.OpBetween && cond.MinValue > cond.MaxValue {
			return errors.ValidationError("BETWEEN condition min_value exceeds max_value").
				WithContext("condition_index", i)
		}
	}
	if adj := rule.Action.Adjustment; adj != nil {
		switch adj.Kind {
		case rules.AdjustFixedAdd, rules.AdjustFixedSubtract, rules.AdjustOverride:
			if adj.Currency == "" {
				return errors.ValidationError("fixed and override adjustments require a currency")
			}
		case rules.AdjustPercentageAdd, rules.AdjustPercentageSubtract:
		default:
			return errors.ValidationError("unknown adjustment kind: " + string(adj.Kind))
		}
	}
	return nil
}
