// Package ups implements the Provider contract against the UPS REST APIs.
package ups

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shipping-gateway/internal/circuitbreaker"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

// CarrierCode identifies this provider in the registry and in stored rules.
const CarrierCode = "ups"

// serviceNames maps UPS service codes to human-readable names. UPS rating
// responses carry only the numeric code.
var serviceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"07": "UPS Worldwide Express",
	"08": "UPS Worldwide Expedited",
	"11": "UPS Standard",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
	"65": "UPS Worldwide Saver",
}

// Config holds the UPS API endpoint configuration.
type Config struct {
	BaseURL string
}

// Provider talks to the UPS REST APIs.
type Provider struct {
	config  Config
	client  *http.Client
	tokens  *providers.TokenCache
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// New creates a UPS provider.
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

type wireAddress struct {
	City              string   `json:"City,omitempty"`
	StateProvinceCode string   `json:"StateProvinceCode,omitempty"`
	PostalCode        string   `json:"PostalCode"`
	CountryCode       string   `json:"CountryCode"`
	AddressLine       []string `json:"AddressLine,omitempty"`
}

type ratedShipment struct {
	Service struct {
		Code string `json:"Code"`
	} `json:"Service"`
	TotalCharges struct {
		CurrencyCode  string `json:"CurrencyCode"`
		MonetaryValue string `json:"MonetaryValue"`
	} `json:"TotalCharges"`
	GuaranteedDelivery struct {
		BusinessDaysInTransit string `json:"BusinessDaysInTransit"`
	} `json:"GuaranteedDelivery"`
	ItemizedCharges []struct {
		Code          string `json:"Code"`
		MonetaryValue string `json:"MonetaryValue"`
	} `json:"ItemizedCharges"`
}

type rateResponse struct {
	RateResponse struct {
		RatedShipment []json.RawMessage `json:"RatedShipment"`
	} `json:"RateResponse"`
}

// GetRates queries the UPS Shop rating API, which returns every service the
// account can use for the lane in one call.
func (p *Provider) GetRates(ctx context.Context, shipment *models.ShipmentDetails, cfg *models.MerchantProviderConfig) ([]models.RateQuote, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	packages := make([]map[string]interface{}, 0, len(shipment.Parcels))
	for _, parcel := range shipment.Parcels {
		packages = append(packages, map[string]interface{}{
			"PackagingType": map[string]string{"Code": "02"},
			"Dimensions": map[string]interface{}{
				"UnitOfMeasurement": map[string]string{"Code": upsDimensionUnit(parcel.DimensionUnit)},
				"Length":            formatMeasure(parcel.Length),
				"Width":             formatMeasure(parcel.Width),
				"Height":            formatMeasure(parcel.Height),
			},
			"PackageWeight": map[string]interface{}{
				"UnitOfMeasurement": map[string]string{"Code": upsWeightUnit(parcel.WeightUnit)},
				"Weight":            formatMeasure(parcel.Weight),
			},
		})
	}

	reqBody := map[string]interface{}{
		"RateRequest": map[string]interface{}{
			"Request": map[string]interface{}{
				"RequestOption": "Shop",
			},
			"Shipment": map[string]interface{}{
				"Shipper": map[string]interface{}{
					"ShipperNumber": cfg.AccountNumber,
					"Address":       toWireAddress(shipment.Origin),
				},
				"ShipTo": map[string]interface{}{
					"Address": toWireAddress(shipment.Destination),
				},
				"Package": packages,
			},
		},
	}

	var response rateResponse
	if err := p.do(ctx, http.MethodPost, "/api/rating/v2403/Shop", cfg, reqBody, &response); err != nil {
		return nil, errors.CarrierRateError(CarrierCode, err)
	}

	quotes := make([]models.RateQuote, 0, len(response.RateResponse.RatedShipment))
	for _, raw := range response.RateResponse.RatedShipment {
		var rated ratedShipment
		if err := json.Unmarshal(raw, &rated); err != nil {
			p.logger.Warn("Skipping unparseable rated shipment", logging.Err(err))
			continue
		}
		amount, err := strconv.ParseFloat(rated.TotalCharges.MonetaryValue, 64)
		if err != nil {
			p.logger.Warn("Skipping rated shipment with non-numeric charge",
				logging.String("value", rated.TotalCharges.MonetaryValue))
			continue
		}

		quote := models.RateQuote{
			CarrierCode:          CarrierCode,
			ServiceCode:          rated.Service.Code,
			ServiceName:          serviceName(rated.Service.Code),
			Amount:               amount,
			Currency:             rated.TotalCharges.CurrencyCode,
			OriginalProviderRate: raw,
		}
		if days, err := strconv.Atoi(rated.GuaranteedDelivery.BusinessDaysInTransit); err == nil && days > 0 {
			quote.DeliveryEstimate = &models.DeliveryEstimate{MinDays: days, MaxDays: days}
		}
		for _, charge := range rated.ItemizedCharges {
			if amount, err := strconv.ParseFloat(charge.MonetaryValue, 64); err == nil && amount > 0 {
				quote.Surcharges = append(quote.Surcharges, models.Surcharge{Name: charge.Code, Amount: amount})
			}
		}
		quotes = append(quotes, quote)
	}

	return quotes, nil
}

type shipResponse struct {
	ShipmentResponse struct {
		ShipmentResults struct {
			ShipmentIdentificationNumber string `json:"ShipmentIdentificationNumber"`
			PackageResults               []struct {
				TrackingNumber string `json:"TrackingNumber"`
				ShippingLabel  struct {
					GraphicImage string `json:"GraphicImage"`
				} `json:"ShippingLabel"`
			} `json:"PackageResults"`
		} `json:"ShipmentResults"`
	} `json:"ShipmentResponse"`
}

// CreateLabel redeems a quoted UPS rate into a shipping label. UPS returns
// the label image inline as base64 rather than by URL.
func (p *Provider) CreateLabel(ctx context.Context, req *providers.LabelRequest, cfg *models.MerchantProviderConfig) (*models.Label, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	shipBody := map[string]interface{}{
		"ShipmentRequest": map[string]interface{}{
			"Shipment": map[string]interface{}{
				"Shipper": map[string]interface{}{
					"ShipperNumber": cfg.AccountNumber,
					"Address":       toWireAddress(req.Shipment.Origin),
				},
				"ShipTo": map[string]interface{}{
					"Address": toWireAddress(req.Shipment.Destination),
				},
				"Service": map[string]string{"Code": req.ServiceCode},
				"PaymentInformation": map[string]interface{}{
					"ShipmentCharge": map[string]interface{}{
						"Type":        "01",
						"BillShipper": map[string]string{"AccountNumber": cfg.AccountNumber},
					},
				},
			},
			"LabelSpecification": map[string]interface{}{
				"LabelImageFormat": map[string]string{"Code": "GIF"},
			},
		},
	}

	var response shipResponse
	if err := p.do(ctx, http.MethodPost, "/api/shipments/v2403/ship", cfg, shipBody, &response); err != nil {
		return nil, errors.LabelGenerationFailedError(CarrierCode, err)
	}

	results := response.ShipmentResponse.ShipmentResults
	if len(results.PackageResults) == 0 {
		return nil, errors.LabelGenerationFailedError(CarrierCode, fmt.Errorf("empty ship response"))
	}

	return &models.Label{
		LabelID:        results.ShipmentIdentificationNumber,
		CarrierCode:    CarrierCode,
		TrackingNumber: results.PackageResults[0].TrackingNumber,
		LabelData:      results.PackageResults[0].ShippingLabel.GraphicImage,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

type trackResponse struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				CurrentStatus struct {
					Description string `json:"description"`
				} `json:"currentStatus"`
				Activity []struct {
					Date   string `json:"date"`
					Time   string `json:"time"`
					Status struct {
						Description string `json:"description"`
					} `json:"status"`
					Location struct {
						Address struct {
							City          string `json:"city"`
							StateProvince string `json:"stateProvince"`
						} `json:"address"`
					} `json:"location"`
				} `json:"activity"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

// GetTrackingDetails queries UPS tracking for a number.
func (p *Provider) GetTrackingDetails(ctx context.Context, trackingNumber string, cfg *models.MerchantProviderConfig) (*models.TrackingDetails, error) {
	if err := p.validateConfig(cfg); err != nil {
		return nil, err
	}

	var response trackResponse
	if err := p.do(ctx, http.MethodGet, "/api/track/v1/details/"+trackingNumber, cfg, nil, &response); err != nil {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, err)
	}

	if len(response.TrackResponse.Shipment) == 0 || len(response.TrackResponse.Shipment[0].Package) == 0 {
		return nil, errors.TrackingInfoUnavailableError(trackingNumber, fmt.Errorf("no tracking results"))
	}
	pkg := response.TrackResponse.Shipment[0].Package[0]

	details := &models.TrackingDetails{
		TrackingNumber: trackingNumber,
		CarrierCode:    CarrierCode,
		Status:         pkg.CurrentStatus.Description,
	}
	for _, activity := range pkg.Activity {
		event := models.TrackingEvent{
			Status:      activity.Status.Description,
			Description: activity.Status.Description,
			Location:    activity.Location.Address.City + ", " + activity.Location.Address.StateProvince,
		}
		if ts, err := time.Parse("20060102 150405", activity.Date+" "+activity.Time); err == nil {
			event.Timestamp = ts
		}
		details.Events = append(details.Events, event)
	}
	return details, nil
}

func (p *Provider) validateConfig(cfg *models.MerchantProviderConfig) error {
	if cfg == nil || cfg.APIKey == "" || cfg.APISecret == "" {
		return errors.ProviderConfigurationError(CarrierCode, "missing API credentials")
	}
	if cfg.AccountNumber == "" {
		return errors.ProviderConfigurationError(CarrierCode, "missing shipper number")
	}
	return nil
}

func (p *Provider) do(ctx context.Context, method, path string, cfg *models.MerchantProviderConfig, body, out interface{}) error {
	token, err := p.tokens.Token(ctx, p.config.BaseURL+"/security/v1/oauth/token", cfg.APIKey, cfg.APISecret)
	if err != nil {
		return err
	}

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

	_, err = p.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, reader)
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
			return nil, fmt.Errorf("ups returned status %d", resp.StatusCode)
		}
		return nil, json.NewDecoder(resp.Body).Decode(out)
	})
	return err
}

func toWireAddress(addr models.Address) wireAddress {
	wire := wireAddress{
		City:              addr.City,
		StateProvinceCode: addr.State,
		PostalCode:        addr.PostalCode,
		CountryCode:       addr.Country,
	}
	if addr.Line1 != "" {
		wire.AddressLine = append(wire.AddressLine, addr.Line1)
	}
	if addr.Line2 != "" {
		wire.AddressLine = append(wire.AddressLine, addr.Line2)
	}
	return wire
}

func serviceName(code string) string {
	if name, ok := serviceNames[code]; ok {
		return name
	}
	return "UPS Service " + code
}

func upsWeightUnit(unit string) string {
	if unit == "kg" {
		return "KGS"
	}
	return "LBS"
}

func upsDimensionUnit(unit string) string {
	if unit == "cm" {
		return "CM"
	}
	return "IN"
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
