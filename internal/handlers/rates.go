package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
)

// GetRates runs the full aggregation pipeline for the shipment in the body
// and returns the priced, rule-filtered quote list.
func (h *Handlers) GetRates(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	var shipment models.ShipmentDetails
	if err := json.NewDecoder(r.Body).Decode(&shipment); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := validateShipment(&shipment); err != nil {
		h.sendError(w, err)
		return
	}

	result, err := h.rates.GetRates(r.Context(), merchantID, &shipment)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

func validateShipment(s *models.ShipmentDetails) error {
	if s.Origin.PostalCode == "" || s.Origin.Country == "" {
		return errors.ValidationError("origin postal_code and country are required")
	}
	if s.Destination.PostalCode == "" || s.Destination.Country == "" {
		return errors.ValidationError("destination postal_code and country are required")
	}
	if len(s.Parcels) == 0 {
		return errors.ValidationError("at least one parcel is required")
	}
	for i, p := range s.Parcels {
		if p.Weight <= 0 {
			return errors.ValidationError("parcel weight must be positive").
				WithContext("parcel_index", i)
		}
	}
	return nil
}

type createLabelRequest struct {
	RateID string `json:"rate_id"`
}

// CreateLabel redeems a previously quoted rate into a shipping label.
func (h *Handlers) CreateLabel(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())

	var req createLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, errors.ValidationError("invalid request body: "+err.Error()))
		return
	}
	if req.RateID == "" {
		h.sendError(w, errors.ValidationError("rate_id is required"))
		return
	}

	label, err := h.labels.CreateLabel(r.Context(), merchantID, req.RateID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, label)
}

// GetTracking resolves tracking details for a tracking number. An optional
// ?carrier= query parameter hints which carrier to probe first.
func (h *Handlers) GetTracking(w http.ResponseWriter, r *http.Request) {
	merchantID := auth.MerchantID(r.Context())
	trackingNumber := mux.Vars(r)["number"]
	carrierHint := r.URL.Query().Get("carrier")

	details, err := h.tracking.GetTracking(r.Context(), merchantID, trackingNumber, carrierHint)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, details)
}
