// Package shipstream implements the Provider contract against ShipStream,
// a multi-carrier aggregator. One rate call returns quotes from several
// underlying carriers; the quotes keep ShipStream's carrier attribution in
// the service name but are owned by this provider for label redemption.
package shipstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shipping-gateway/internal/circuitbreaker"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

// CarrierCode identifies this provider in the registry and in stored rules.
const CarrierCode = "shipstream"

// subAccountProperty is the merchant custom property selecting which
// ShipStream sub-account the merchant's traffic bills to.
const subAccountProperty = "sub_account_id"

// Config holds the ShipStream API endpoint configuration.
type Config struct {
	BaseURL string
}

// Provider talks to the ShipStream aggregator API.
type Provider struct {
	config  Config
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// New creates a ShipStream provider.
func New(config Config, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Provider{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: circuitbreaker.New(CarrierCode, circuitbreaker.CarrierConfig, logger),
		logger:  logger.WithFields(logging.String("carrier", CarrierCode)),
	}
}

// Code returns the carrier code.
func (p *Provider) Code() string { return CarrierCode }

type wireAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type wireParcel struct {
	Weight        float64 `json:"weight"`
	WeightUnit    string  `json:"weight_unit"`
	Length        float64 `json:"length"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	DimensionUnit string  `json:"dimension_unit"`
}

type quoteRequest struct {
	SubAccountID string       `json:"sub_account_id,omitempty"`
	From         wireAddress  `json:"from"`
	To           wireAddress  `json:"to"`
	Parcels      []wireParcel `json:"parcels"`
	Currency     string       `json:"currency,omitempty"`
}

type quoteResponse struct {
	Quotes []json.RawMessage `json:"quotes"`
}

type wireQuote struct {
	QuoteID      string  `json:"quote_id"`
	Carrier      string  `json:"carrier"`
	Service      string  `json:"service"`
	ServiceName  string  `json:"service_name"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	TransitDays  int     `json:"transit_days"`
	DeliveryDate string  `json:"delivery_date"`
}

// GetRates queries ShipStream, which fans out to its own carrier network and
// returns the merged quote list in one call.
func (p *Provider) GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	reqBody := quoteRequest{
		SubAccountID: cfg.CustomProperties[subAccountProperty],
		From:         toWireAddress(shipment.Origin),
		To:           toWireAddress(shipment.Destination),
		Currency:     shipment.Currency,
	}
	for _, parcel := range shipment.Parcels {
		reqBody.Parcels = append(reqBody.Parcels, wireParcel(parcel))
	}

	var response quoteResponse
	if err := p.do(ctx, http.MethodPost, "/v1/quotes", cfg, reqBody, &response); err != nil {
		return nil, errors.CarrierRateError(CarrierCode, err)
	}

	quotes := make([]models.RateQuote, 0, len(response.Quotes))
	for _, raw := range response.Quotes {
		var wire wireQuote
		if err := json.Unmarshal(raw, &wire); err != nil {
			p.logger.Warn("Skipping unparseable quote", logging.Err(err))
			continue
		}

		serviceName := wire.ServiceName
		if serviceName == "" {
			serviceName = wire.Carrier + " " + wire.Service
		}
		quote := models.RateQuote{
			CarrierCode:          CarrierCode,
			ServiceCode:          wire.Service,
			ServiceName:          serviceName,
			Amount:               wire.Amount,
			Currency:             wire.Currency,
			OriginalProviderRate: raw,
		}
		if wire.TransitDays > 0 {
			quote.DeliveryEstimate = &models.DeliveryEstimate{MinDays: wire.TransitDays, MaxDays: wire.TransitDays}
		}
		if ts, err := time.Parse("2006-01-02", wire.DeliveryDate); err == nil {
			if quote.DeliveryEstimate == nil {
				quote.DeliveryEstimate = &models.DeliveryEstimate{}
			}
			quote.DeliveryEstimate.LatestDate = &ts
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}

type labelResponse struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	LabelURL       string `json:"label_url"`
}

// CreateLabel redeems a quote with ShipStream. The upstream quote_id from
// the original rate payload, when present, pins the exact priced offer.
func (p *Provider) CreateLabel(ctx context.Context, req *providers.LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	labelBody := map[string]interface{}{
		"sub_account_id": cfg.CustomProperties[subAccountProperty],
		"service":        req.ServiceCode,
		"from":           toWireAddress(req.Shipment.Origin),
		"to":             toWireAddress(req.Shipment.Destination),
	}
	if len(req.ProviderData) > 0 {
		var wire wireQuote
		if err := json.Unmarshal(req.ProviderData, &wire); err == nil && wire.QuoteID != "" {
			labelBody["quote_id"] = wire.QuoteID
		}
	}

	var response labelResponse
	if err := p.do(ctx, http.MethodPost, "/v1/labels", cfg, labelBody, &response); err != nil {
		return nil, errors.LabelGenerationFailedError(CarrierCode, err)
	}

	if response.TrackingNumber == "" {
		return nil, errors.LabelGenerationFailedError(CarrierCode, fmt.Errorf("empty label response"))
	}

	return &models.Label{
		LabelID:        response.ShipmentID,
		CarrierCode:    CarrierCode,
		TrackingNumber: response.TrackingNumber,
		LabelURL:       response.LabelURL,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

type trackingResponse struct {
	TrackingNumber    string `json:"tracking_number"`
	Status            string `json:"status"`
	EstimatedDelivery string `json:"estimated_delivery"`
	Events            []struct {
		Timestamp   string `json:"timestamp"`
		Status      string `json:"status"`
		Location    string `json:"location"`
		Description string `json:"description"`
	} `json:"events"`
}

// GetTrackingDetails queries ShipStream tracking.
func (p *Provider) GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	var response trackingResponse
	if err := p.do(ctx, http.MethodGet, "/v1/tracking/"+trackingNumber, cfg, nil, &response); err != nil {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, err)
	}

	if response.Status == "" {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, fmt.Errorf("no tracking results"))
	}

	details := &models.TrackingDetails{
		TrackingNumber: trackingNumber,
		CarrierCode:    CarrierCode,
		Status:         response.Status,
	}
	if ts, err := time.Parse("2006-01-02", response.EstimatedDelivery); err == nil {
		details.EstimatedDelivery = &ts
	}
	for _, event := range response.Events {
		trackingEvent := models.TrackingEvent{
			Status:      event.Status,
			Location:    event.Location,
			Description: event.Description,
		}
		if ts, err := time.Parse(time.RFC3339, event.Timestamp); err == nil {
			trackingEvent.Timestamp = ts
		}
		details.Events = append(details.Events, trackingEvent)
	}
	return details, nil
}

func (p *Provider) validateConfig(cfg *models.MerchantProviderConfig) error {
	if cfg == nil || cfg.APIKey == "" {
		return errors.ProviderConfigurationError(CarrierCode, "missing API key")
	}
	return nil
}

func (p *Provider) do(ctx context.Context, method, path string, cfg *models.MerchantProviderConfig, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.InternalError("failed to marshal request", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", cfg.APIKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("shipstream returned status %d", resp.StatusCode)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func toWireAddress(addr models.Address) wireAddress {
	return wireAddress{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}
