// Package dhl implements the Provider contract against the DHL Express
// MyDHL REST API. DHL authenticates with a static API key pair rather than
// OAuth, sent as basic auth on every request.
package dhl

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
const CarrierCode = "dhl"

// Config holds the DHL API endpoint configuration.
type Config struct {
	BaseURL string
}

// Provider talks to the DHL Express REST API.
type Provider struct {
	config  Config
	client  *http.Client
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// New creates a DHL provider.
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

type productsResponse struct {
	Products []json.RawMessage `json:"products"`
}

type product struct {
	ProductName string `json:"productName"`
	ProductCode string `json:"productCode"`
	TotalPrice  []struct {
		CurrencyType  string  `json:"currencyType"`
		PriceCurrency string  `json:"priceCurrency"`
		Price         float64 `json:"price"`
	} `json:"totalPrice"`
	DeliveryCapabilities struct {
		EstimatedDeliveryDateAndTime string `json:"estimatedDeliveryDateAndTime"`
		TotalTransitDays             int    `json:"totalTransitDays"`
	} `json:"deliveryCapabilities"`
	DetailedPriceBreakdown []struct {
		PriceBreakdown []struct {
			ServiceTypeCode string  `json:"serviceTypeCode"`
			Price           float64 `json:"price"`
		} `json:"priceBreakdown"`
	} `json:"detailedPriceBreakdown"`
}

// GetRates queries the DHL products API for every express product available
// on the lane.
func (p *Provider) GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	packages := make([]map[string]interface{}, 0, len(shipment.Parcels))
	for _, parcel := range shipment.Parcels {
		packages = append(packages, map[string]interface{}{
			"weight": parcel.Weight,
			"dimensions": map[string]float64{
				"length": parcel.Length,
				"width":  parcel.Width,
				"height": parcel.Height,
			},
		})
	}

	plannedDate := time.Now()
	if shipment.ShipDate != nil {
		plannedDate = *shipment.ShipDate
	}

	reqBody := map[string]interface{}{
		"customerDetails": map[string]interface{}{
			"shipperDetails":  toWireAddress(shipment.Origin),
			"receiverDetails": toWireAddress(shipment.Destination),
		},
		"accounts": []map[string]string{
			{"typeCode": "shipper", "number": cfg.AccountNumber},
		},
		"plannedShippingDateAndTime": plannedDate.Format("2006-01-02T15:04:05GMT-07:00"),
		"unitOfMeasurement":          dhlUnitSystem(shipment.Parcels),
		"isCustomsDeclarable":        shipment.Origin.Country != shipment.Destination.Country,
		"packages":                   packages,
	}

	var response productsResponse
	if err := p.do(ctx, http.MethodPost, "/mydhlapi/rates", cfg, reqBody, &response); err != nil {
		return nil, errors.CarrierRateError(CarrierCode, err)
	}

	quotes := make([]models.RateQuote, 0, len(response.Products))
	for _, raw := range response.Products {
		var prod product
		if err := json.Unmarshal(raw, &prod); err != nil {
			p.logger.Warn("Skipping unparseable product", logging.Err(err))
			continue
		}

		quote := models.RateQuote{
			CarrierCode:          CarrierCode,
			ServiceCode:          prod.ProductCode,
			ServiceName:          prod.ProductName,
			OriginalProviderRate: raw,
		}
		// BILLC is the billing-currency entry; DHL also returns BASEC and
		// PULCL variants for the same product.
		for _, price := range prod.TotalPrice {
			if price.CurrencyType == "BILLC" || quote.Currency == "" {
				quote.Amount = price.Price
				quote.Currency = price.PriceCurrency
			}
		}
		if quote.Currency == "" {
			continue
		}
		if days := prod.DeliveryCapabilities.TotalTransitDays; days > 0 {
			quote.DeliveryEstimate = &models.DeliveryEstimate{MinDays: days, MaxDays: days}
			if ts, err := time.Parse("2006-01-02T15:04:05", prod.DeliveryCapabilities.EstimatedDeliveryDateAndTime); err == nil {
				quote.DeliveryEstimate.LatestDate = &ts
			}
		}
		for _, breakdown := range prod.DetailedPriceBreakdown {
			for _, charge := range breakdown.PriceBreakdown {
				if charge.ServiceTypeCode != "" && charge.Price > 0 {
					quote.Surcharges = append(quote.Surcharges, models.Surcharge{
						Name:   charge.ServiceTypeCode,
						Amount: charge.Price,
					})
				}
			}
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}

type shipmentResponse struct {
	ShipmentTrackingNumber string `json:"shipmentTrackingNumber"`
	Documents              []struct {
		TypeCode string `json:"typeCode"`
		Content  string `json:"content"`
	} `json:"documents"`
}

// CreateLabel books a DHL shipment; the label PDF comes back inline.
func (p *Provider) CreateLabel(ctx context.Context, req *providers.LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	shipBody := map[string]interface{}{
		"plannedShippingDateAndTime": time.Now().Format("2006-01-02T15:04:05GMT-07:00"),
		"productCode":                req.ServiceCode,
		"accounts": []map[string]string{
			{"typeCode": "shipper", "number": cfg.AccountNumber},
		},
		"customerDetails": map[string]interface{}{
			"shipperDetails":  toWireAddress(req.Shipment.Origin),
			"receiverDetails": toWireAddress(req.Shipment.Destination),
		},
		"outputImageProperties": map[string]interface{}{
			"encodingFormat": "pdf",
		},
	}

	var response shipmentResponse
	if err := p.do(ctx, http.MethodPost, "/mydhlapi/shipments", cfg, shipBody, &response); err != nil {
		return nil, errors.LabelGenerationFailedError(CarrierCode, err)
	}

	if response.ShipmentTrackingNumber == "" {
		return nil, errors.LabelGenerationFailedError(CarrierCode, fmt.Errorf("empty shipment response"))
	}

	label := &models.Label{
		LabelID:        response.ShipmentTrackingNumber,
		CarrierCode:    CarrierCode,
		TrackingNumber: response.ShipmentTrackingNumber,
		CreatedAt:      time.Now().UTC(),
	}
	for _, doc := range response.Documents {
		if doc.TypeCode == "label" {
			label.LabelData = doc.Content
			break
		}
	}
	return label, nil
}

type trackingResponse struct {
	Shipments []struct {
		Status               string `json:"status"`
		EstimatedDeliveryDate string `json:"estimatedDeliveryDate"`
		Events               []struct {
			Date        string `json:"date"`
			Time        string `json:"time"`
			Description string `json:"description"`
			ServiceArea []struct {
				Description string `json:"description"`
			} `json:"serviceArea"`
		} `json:"events"`
	} `json:"shipments"`
}

// GetTrackingDetails queries DHL tracking for a shipment number.
func (p *Provider) GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	var response trackingResponse
	path := "/mydhlapi/shipments/" + trackingNumber + "/tracking"
	if err := p.do(ctx, http.MethodGet, path, cfg, nil, &response); err != nil {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, err)
	}

	if len(response.Shipments) == 0 {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, fmt.Errorf("no tracking results"))
	}
	shipment := response.Shipments[0]

	details := &models.TrackingDetails{
		TrackingNumber: trackingNumber,
		CarrierCode:    CarrierCode,
		Status:         shipment.Status,
	}
	if ts, err := time.Parse("2006-01-02", shipment.EstimatedDeliveryDate); err == nil {
		details.EstimatedDelivery = &ts
	}
	for _, event := range shipment.Events {
		trackingEvent := models.TrackingEvent{
			Status:      event.Description,
			Description: event.Description,
		}
		if len(event.ServiceArea) > 0 {
			trackingEvent.Location = event.ServiceArea[0].Description
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", event.Date+" "+event.Time); err == nil {
			trackingEvent.Timestamp = ts
		}
		details.Events = append(details.Events, trackingEvent)
	}
	return details, nil
}

func (p *Provider) validateConfig(cfg *models.MerchantProviderConfig) error {
	if cfg == nil || cfg.APIKey == "" || cfg.APISecret == "" {
		return errors.ProviderConfigurationError(CarrierCode, "missing API credentials")
	}
	if cfg.AccountNumber == "" {
		return errors.ProviderConfigurationError(CarrierCode, "missing account number")
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
		req.SetBasicAuth(cfg.APIKey, cfg.APISecret)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("dhl returned status %d", resp.StatusCode)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func toWireAddress(addr models.Address) map[string]interface{} {
	line1 := addr.Line1
	if line1 == "" {
		line1 = addr.City
	}
	return map[string]interface{}{
		"postalAddress": map[string]string{
			"postalCode":   addr.PostalCode,
			"cityName":     addr.City,
			"countryCode":  addr.Country,
			"addressLine1": line1,
		},
	}
}

func dhlUnitSystem(parcels []models.Parcel) string {
	for _, parcel := range parcels {
		if parcel.WeightUnit == "lb" || parcel.DimensionUnit == "in" {
			return "imperial"
		}
	}
	return "metric"
}
