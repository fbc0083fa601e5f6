package ups

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

func testConfig() *models.MerchantProviderConfig {
	return &models.MerchantProviderConfig{
		MerchantID:    "m1",
		CarrierCode:   CarrierCode,
		APIKey:        "client-id",
		APISecret:     "client-secret",
		AccountNumber: "A1B2C3",
		Enabled:       true,
	}
}

func testShipment() *models.ShipmentDetails {
	return &models.ShipmentDetails{
		Origin:      models.Address{Line1: "1 Warehouse Way", City: "Louisville", State: "KY", PostalCode: "40202", Country: "US"},
		Destination: models.Address{Line1: "9 Elm St", City: "Boston", State: "MA", PostalCode: "02108", Country: "US"},
		Parcels: []models.Parcel{
			{Weight: 1.2, WeightUnit: "kg", Length: 30, Width: 20, Height: 10, DimensionUnit: "cm"},
		},
		Currency: "USD",
	}
}

func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/security/v1/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "ups-token", "expires_in": 3600,
		})
	})
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newProvider(server *httptest.Server) *Provider {
	logger := logging.NewDefaultLogger()
	tokens := providers.NewTokenCache(server.Client(), logger)
	p := New(Config{BaseURL: server.URL}, tokens, logger)
	p.client = server.Client()
	return p
}

func TestGetRatesShop(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/rating/v2403/Shop": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer ups-token", r.Header.Get("Authorization"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			rateReq := body["RateRequest"].(map[string]interface{})
			shipment := rateReq["Shipment"].(map[string]interface{})
			shipper := shipment["Shipper"].(map[string]interface{})
			assert.Equal(t, "A1B2C3", shipper["ShipperNumber"])
			pkg := shipment["Package"].([]interface{})[0].(map[string]interface{})
			weight := pkg["PackageWeight"].(map[string]interface{})
			assert.Equal(t, "KGS", weight["UnitOfMeasurement"].(map[string]interface{})["Code"])
			assert.Equal(t, "1.20", weight["Weight"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"RateResponse": map[string]interface{}{
					"RatedShipment": []map[string]interface{}{
						{
							"Service":      map[string]string{"Code": "03"},
							"TotalCharges": map[string]string{"CurrencyCode": "USD", "MonetaryValue": "11.80"},
							"GuaranteedDelivery": map[string]string{
								"BusinessDaysInTransit": "3",
							},
							"ItemizedCharges": []map[string]string{
								{"Code": "FUEL", "MonetaryValue": "1.15"},
							},
						},
						{
							"Service":      map[string]string{"Code": "01"},
							"TotalCharges": map[string]string{"CurrencyCode": "USD", "MonetaryValue": "42.90"},
						},
					},
				},
			})
		},
	})

	quotes, err := newProvider(server).GetRates(context.Background(), testShipment(), testConfig())
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "03", quotes[0].ServiceCode)
	assert.Equal(t, "UPS Ground", quotes[0].ServiceName)
	assert.Equal(t, 11.80, quotes[0].Amount)
	require.NotNil(t, quotes[0].DeliveryEstimate)
	assert.Equal(t, 3, quotes[0].DeliveryEstimate.MinDays)
	require.Len(t, quotes[0].Surcharges, 1)
	assert.Equal(t, "FUEL", quotes[0].Surcharges[0].Name)
	assert.Equal(t, 1.15, quotes[0].Surcharges[0].Amount)
	assert.NotEmpty(t, quotes[0].OriginalProviderRate)

	assert.Equal(t, "UPS Next Day Air", quotes[1].ServiceName)
	assert.Nil(t, quotes[1].DeliveryEstimate)
}

func TestGetRatesSkipsNonNumericCharges(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/rating/v2403/Shop": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"RateResponse": map[string]interface{}{
					"RatedShipment": []map[string]interface{}{
						{
							"Service":      map[string]string{"Code": "03"},
							"TotalCharges": map[string]string{"CurrencyCode": "USD", "MonetaryValue": "not-a-number"},
						},
					},
				},
			})
		},
	})

	quotes, err := newProvider(server).GetRates(context.Background(), testShipment(), testConfig())
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestGetRatesUpstreamError(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/rating/v2403/Shop": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		},
	})

	_, err := newProvider(server).GetRates(context.Background(), testShipment(), testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeCarrierRate))
}

func TestGetRatesMissingShipperNumber(t *testing.T) {
	server := newTestServer(t, nil)
	cfg := testConfig()
	cfg.AccountNumber = ""

	_, err := newProvider(server).GetRates(context.Background(), testShipment(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProviderConfig))
}

func TestCreateLabelReturnsInlineImage(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/shipments/v2403/ship": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			shipReq := body["ShipmentRequest"].(map[string]interface{})
			service := shipReq["Shipment"].(map[string]interface{})["Service"].(map[string]interface{})
			assert.Equal(t, "03", service["Code"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"ShipmentResponse": map[string]interface{}{
					"ShipmentResults": map[string]interface{}{
						"ShipmentIdentificationNumber": "1Z999AA10123456784",
						"PackageResults": []map[string]interface{}{
							{
								"TrackingNumber": "1Z999AA10123456784",
								"ShippingLabel":  map[string]string{"GraphicImage": "R0lGODlh"},
							},
						},
					},
				},
			})
		},
	})

	req := &providers.LabelRequest{Shipment: testShipment(), ServiceCode: "03"}
	label, err := newProvider(server).CreateLabel(context.Background(), req, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", label.TrackingNumber)
	assert.Equal(t, "R0lGODlh", label.LabelData)
	assert.Empty(t, label.LabelURL)
}

func TestCreateLabelEmptyResponse(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/shipments/v2403/ship": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"ShipmentResponse": map[string]interface{}{}})
		},
	})

	req := &providers.LabelRequest{Shipment: testShipment(), ServiceCode: "03"}
	_, err := newProvider(server).CreateLabel(context.Background(), req, testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeLabelGeneration))
}

func TestGetTrackingDetails(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/track/v1/details/1Z999AA10123456784": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"trackResponse": map[string]interface{}{
					"shipment": []map[string]interface{}{
						{
							"package": []map[string]interface{}{
								{
									"currentStatus": map[string]string{"description": "Out For Delivery"},
									"activity": []map[string]interface{}{
										{
											"date":   "20260830",
											"time":   "081500",
											"status": map[string]string{"description": "Out For Delivery Today"},
											"location": map[string]interface{}{
												"address": map[string]string{"city": "Boston", "stateProvince": "MA"},
											},
										},
									},
								},
							},
						},
					},
				},
			})
		},
	})

	details, err := newProvider(server).GetTrackingDetails(context.Background(), "1Z999AA10123456784", testConfig())
	require.NoError(t, err)
	assert.Equal(t, "Out For Delivery", details.Status)
	require.Len(t, details.Events, 1)
	assert.Equal(t, "Boston, MA", details.Events[0].Location)
	assert.Equal(t, 2026, details.Events[0].Timestamp.Year())
	assert.Equal(t, 8, details.Events[0].Timestamp.Hour())
}

func TestGetTrackingDetailsNoResults(t *testing.T) {
	server := newTestServer(t, map[string]http.HandlerFunc{
		"/api/track/v1/details/1Z0": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"trackResponse": map[string]interface{}{}})
		},
	})

	_, err := newProvider(server).GetTrackingDetails(context.Background(), "1Z0", testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTrackingUnavailable))
}

func TestServiceNameFallsBackToCode(t *testing.T) {
	assert.Equal(t, "UPS Ground", serviceName("03"))
	assert.Equal(t, "UPS Service 99", serviceName("99"))
}

func TestUnitMapping(t *testing.T) {
	assert.Equal(t, "KGS", upsWeightUnit("kg"))
	assert.Equal(t, "LBS", upsWeightUnit("lb"))
	assert.Equal(t, "CM", upsDimensionUnit("cm"))
	assert.Equal(t, "IN", upsDimensionUnit(""))
	assert.Equal(t, "12.50", formatMeasure(12.5))
}
