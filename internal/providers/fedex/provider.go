// Package fedex implements the Provider contract against the FedEx REST
// APIs (OAuth2 client credentials, JSON rate/ship/track endpoints).
package fedex

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
const CarrierCode = "fedex"

// Config holds the FedEx API endpoint configuration.
type Config struct {
	BaseURL string
}

// Provider talks to the FedEx REST APIs.
type Provider struct {
	config  Config
	client  *http.Client
	tokens  *providers.TokenCache
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// New creates a FedEx provider.
func New(config Config, tokens *providers.TokenCache, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Provider{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		breaker: circuitbreaker.New(CarrierCode, circuitbreaker.CarrierConfig, logger),
		logger:  logger.WithFields(logging.String("carrier", CarrierCode)),
	}
}

// Code returns the carrier code.
func (p *Provider) Code() string { return CarrierCode }

type rateRequest struct {
	AccountNumber struct {
		Value string `json:"value"`
	} `json:"accountNumber"`
	RequestedShipment requestedShipment `json:"requestedShipment"`
}

type requestedShipment struct {
	Shipper               party          `json:"shipper"`
	Recipient             party          `json:"recipient"`
	PickupType            string         `json:"pickupType"`
	RateRequestType       []string       `json:"rateRequestType"`
	RequestedPackageItems []requestedPkg `json:"requestedPackageLineItems"`
	PreferredCurrency     string         `json:"preferredCurrency,omitempty"`
	ShipDateStamp         string         `json:"shipDateStamp,omitempty"`
}

type party struct {
	Address wireAddress `json:"address"`
}

type wireAddress struct {
	City                string `json:"city,omitempty"`
	StateOrProvinceCode string `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string `json:"postalCode"`
	CountryCode         string `json:"countryCode"`
}

type requestedPkg struct {
	Weight struct {
		Units string  `json:"units"`
		Value float64 `json:"value"`
	} `json:"weight"`
	Dimensions struct {
		Length float64 `json:"length"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
		Units  string  `json:"units"`
	} `json:"dimensions"`
}

type rateResponse struct {
	Output struct {
		RateReplyDetails []json.RawMessage `json:"rateReplyDetails"`
	} `json:"output"`
}

type rateReplyDetail struct {
	ServiceType string `json:"serviceType"`
	ServiceName string `json:"serviceName"`
	Commit      struct {
		TransitDays struct {
			MinimumTransitTime int `json:"minimumTransitTime"`
			MaximumTransitTime int `json:"maximumTransitTime"`
		} `json:"transitDays"`
	} `json:"commit"`
	RatedShipmentDetails []struct {
		TotalNetCharge float64 `json:"totalNetCharge"`
		Currency       string  `json:"currency"`
		Surcharges     []struct {
			Description string  `json:"description"`
			Amount      float64 `json:"amount"`
		} `json:"shipmentRateDetail,omitempty"`
	} `json:"ratedShipmentDetails"`
}

// GetRates queries the FedEx rate API.
func (p *Provider) GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	reqBody := rateRequest{}
	reqBody.AccountNumber.Value = cfg.AccountNumber
	reqBody.RequestedShipment = requestedShipment{
		Shipper:           party{Address: toWireAddress(shipment.Origin)},
		Recipient:         party{Address: toWireAddress(shipment.Destination)},
		PickupType:        "DROPOFF_AT_FEDEX_LOCATION",
		RateRequestType:   []string{"ACCOUNT", "LIST"},
		PreferredCurrency: shipment.Currency,
	}
	if shipment.ShipDate != nil {
		reqBody.RequestedShipment.ShipDateStamp = shipment.ShipDate.Format("2006-01-02")
	}
	for _, parcel := range shipment.Parcels {
		var pkg requestedPkg
		pkg.Weight.Units = fedexWeightUnit(parcel.WeightUnit)
		pkg.Weight.Value = parcel.Weight
		pkg.Dimensions.Length = parcel.Length
		pkg.Dimensions.Width = parcel.Width
		pkg.Dimensions.Height = parcel.Height
		pkg.Dimensions.Units = fedexDimensionUnit(parcel.DimensionUnit)
		reqBody.RequestedShipment.RequestedPackageItems = append(reqBody.RequestedShipment.RequestedPackageItems, pkg)
	}

	var response rateResponse
	if err := p.post(ctx, "/rate/v1/rates/quotes", cfg, reqBody, &response); err != nil {
		return nil, errors.CarrierRateError(CarrierCode, err)
	}

	quotes := make([]models.RateQuote, 0, len(response.Output.RateReplyDetails))
	for _, raw := range response.Output.RateReplyDetails {
		var detail rateReplyDetail
		if err := json.Unmarshal(raw, &detail); err != nil {
			p.logger.Warn("Skipping unparseable rate reply detail", logging.Err(err))
			continue
		}
		if len(detail.RatedShipmentDetails) == 0 {
			continue
		}
		rated := detail.RatedShipmentDetails[0]

		quote := models.RateQuote{
			CarrierCode:          CarrierCode,
			ServiceCode:          detail.ServiceType,
			ServiceName:          detail.ServiceName,
			Amount:               rated.TotalNetCharge,
			Currency:             rated.Currency,
			OriginalProviderRate: raw,
		}
		if detail.Commit.TransitDays.MaximumTransitTime > 0 {
			quote.DeliveryEstimate = &models.DeliveryEstimate{
				MinDays: detail.Commit.TransitDays.MinimumTransitTime,
				MaxDays: detail.Commit.TransitDays.MaximumTransitTime,
			}
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}

type shipResponse struct {
	Output struct {
		TransactionShipments []struct {
			MasterTrackingNumber string `json:"masterTrackingNumber"`
			PieceResponses       []struct {
				PackageDocuments []struct {
					URL string `json:"url"`
				} `json:"packageDocuments"`
			} `json:"pieceResponses"`
		} `json:"transactionShipments"`
	} `json:"output"`
}

// CreateLabel redeems a quoted FedEx rate into a shipping label.
func (p *Provider) CreateLabel(ctx context.Context, req *providers.LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	shipBody := map[string]interface{}{
		"labelResponseOptions": "URL_ONLY",
		"accountNumber":        map[string]string{"value": cfg.AccountNumber},
		"requestedShipment": map[string]interface{}{
			"serviceType":   req.ServiceCode,
			"packagingType": "YOUR_PACKAGING",
			"shipper":       party{Address: toWireAddress(req.Shipment.Origin)},
			"recipients":    []party{{Address: toWireAddress(req.Shipment.Destination)}},
			"labelSpecification": map[string]string{
				"imageType": "PDF", "labelStockType": "PAPER_4X6",
			},
		},
	}

	var response shipResponse
	if err := p.post(ctx, "/ship/v1/shipments", cfg, shipBody, &response); err != nil {
		return nil, errors.LabelGenerationFailedError(CarrierCode, err)
	}

	if len(response.Output.TransactionShipments) == 0 {
		return nil, errors.LabelGenerationFailedError(CarrierCode, fmt.Errorf("empty ship response"))
	}
	shipment := response.Output.TransactionShipments[0]

	label := &models.Label{
		LabelID:        shipment.MasterTrackingNumber,
		CarrierCode:    CarrierCode,
		TrackingNumber: shipment.MasterTrackingNumber,
		CreatedAt:      time.Now().UTC(),
	}
	if len(shipment.PieceResponses) > 0 && len(shipment.PieceResponses[0].PackageDocuments) > 0 {
		label.LabelURL = shipment.PieceResponses[0].PackageDocuments[0].URL
	}
	return label, nil
}

type trackResponse struct {
	Output struct {
		CompleteTrackResults []struct {
			TrackResults []struct {
				LatestStatusDetail struct {
					Description string `json:"description"`
				} `json:"latestStatusDetail"`
				EstimatedDeliveryTime string `json:"estimatedDeliveryTimeWindow,omitempty"`
				ScanEvents            []struct {
					Date             string `json:"date"`
					EventDescription string `json:"eventDescription"`
					ScanLocation     struct {
						City                string `json:"city"`
						StateOrProvinceCode string `json:"stateOrProvinceCode"`
					} `json:"scanLocation"`
				} `json:"scanEvents"`
			} `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

// GetTrackingDetails queries FedEx tracking for a number.
func (p *Provider) GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	trackBody := map[string]interface{}{
		"includeDetailedScans": true,
		"trackingInfo": []map[string]interface{}{
			{"trackingNumberInfo": map[string]string{"trackingNumber": trackingNumber}},
		},
	}

	var response trackResponse
	if err := p.post(ctx, "/track/v1/trackingnumbers", cfg, trackBody, &response); err != nil {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, err)
	}

	if len(response.Output.CompleteTrackResults) == 0 || len(response.Output.CompleteTrackResults[0].TrackResults) == 0 {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, fmt.Errorf("no track results"))
	}
	result := response.Output.CompleteTrackResults[0].TrackResults[0]

	details := &models.TrackingDetails{
		TrackingNumber: trackingNumber,
		CarrierCode:    CarrierCode,
		Status:         result.LatestStatusDetail.Description,
	}
	for _, event := range result.ScanEvents {
		trackingEvent := models.TrackingEvent{
			Status:      event.EventDescription,
			Description: event.EventDescription,
			Location:    event.ScanLocation.City + ", " + event.ScanLocation.StateOrProvinceCode,
		}
		if ts, err := time.Parse(time.RFC3339, event.Date); err == nil {
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

// post sends an authenticated JSON request through the circuit breaker and
// decodes the response into out.
func (p *Provider) post(ctx context.Context, path string, cfg *models.MerchantProviderConfig, body, out interface{}) error {
	token, err := p.tokens.Token(ctx, p.config.BaseURL+"/oauth/token", cfg.APIKey, cfg.APISecret)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.InternalError("failed to marshal request", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("fedex returned status %d", resp.StatusCode)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func toWireAddress(addr models.Address) wireAddress {
	return wireAddress{
		City:                addr.City,
		StateOrProvinceCode: addr.State,
		PostalCode:          addr.PostalCode,
		CountryCode:         addr.Country,
	}
}

func fedexWeightUnit(unit string) string {
	if unit == "kg" {
		return "KG"
	}
	return "LB"
}

func fedexDimensionUnit(unit string) string {
	if unit == "cm" {
		return "CM"
	}
	return "IN"
}
