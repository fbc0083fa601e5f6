package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
)

const secretMask = "********"

// sanitizeConfig masks credential fields before a config leaves the API.
// Secrets are write-only: merchants set them but never read them back.
func sanitizeConfig(cfg *models.MerchantProviderConfig) *models.MerchantProviderConfig {
	out := *cfg
	if out.APIKey != "" {
		out.APIKey = secretMask
	}
	if out.APISecret != "" {
		out.APISecret = secretMask
	}
	return &out
}

// ListProviderConfigs returns the calling merchant's carrier configurations
// with credentials masked.
func (h *Handlers) ListProviderConfigs(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	configs, err := h.store.ListProviderConfigs(r.Context(), merchantID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	out := make([]*models.MerchantProviderConfig, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, sanitizeConfig(cfg))
	}
	h.sendJSON(w, http.StatusOK, out)
}

// GetProviderConfig returns a single carrier configuration with credentials
// masked.
func (h *Handlers) GetProviderConfig(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	carrierCode := mux.Vars(r)["code"]

	cfg, err := h.store.GetProviderConfig(r.Context(), merchantID, carrierCode)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, sanitizeConfig(cfg))
}

// UpsertProviderConfig creates or replaces the calling merchant's
// configuration for a carrier. The carrier code comes from the path.
func (h *Handlers) UpsertProviderConfig(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	carrierCode := mux.Vars(r)["code"]

	var cfg models.MerchantProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	if carrierCode == "" {
		h.sendError(w, errors.ValidationError("carrier code is required"))
		return
	}
	if carrierCode == models.FallbackCarrierCode {
		h.sendError(w, errors.ValidationError("the fallback carrier is not configurable"))
		return
	}
	cfg.MerchantID = merchantID
	cfg.CarrierCode = carrierCode

	if err := h.store.UpsertProviderConfig(r.Context(), &cfg); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, sanitizeConfig(&cfg))
}

// DeleteProviderConfig removes a carrier configuration.
func (h *Handlers) DeleteProviderConfig(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	carrierCode := mux.Vars(r)["code"]

	if err := h.store.DeleteProviderConfig(r.Context(), merchantID, carrierCode); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusNoContent, nil)
}

// GetFallbackPolicy returns the merchant's degradation policy, or the
// disabled policy when none is set.
func (h *Handlers) GetFallbackPolicy(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	policy, err := h.store.GetFallbackPolicy(r.Context(), merchantID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	if policy == nil {
		policy = &models.FallbackPolicy{Kind: models.FallbackDisabled}
	}
	h.sendJSON(w, http.StatusOK, policy)
}

// SetFallbackPolicy replaces the merchant's degradation policy.
func (h *Handlers) SetFallbackPolicy(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	var policy models.FallbackPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	switch policy.Kind {
	case models.FallbackDisabled, models.FallbackCachedRates:
	case models.FallbackFlatRate:
		if policy.FlatRateAmount <= 0 || policy.Currency == "" {
			h.sendError(w, errors.ValidationError("flat rate policy requires a positive amount and a currency"))
			return
		}
	default:
		h.sendError(w, errors.ValidationError("unknown fallback policy kind: "+string(policy.Kind)))
		return
	}

	if err := h.store.SetFallbackPolicy(r.Context(), merchantID, &policy); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, &policy)
}
