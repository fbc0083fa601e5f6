package fallback

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/cache"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/ratecache"
)

func testShipment() *models.ShipmentDetails {
	return &models.ShipmentDetails{
		Origin:      models.Address{City: "Austin", PostalCode: "78701", Country: "US"},
		Destination: models.Address{City: "Seattle", PostalCode: "98101", Country: "US"},
		Parcels: []models.Parcel{
			{Weight: 1, WeightUnit: "lb", Length: 6, Width: 6, Height: 6, DimensionUnit: "in"},
		},
		Currency: "USD",
	}
}

func newEngine(t *testing.T) (*Engine, *ratecache.RateCache) {
	t.Helper()
	rc := ratecache.New(cache.NewLocalCache(time.Minute, time.Minute), 0, 0, nil)
	return New(rc, nil), rc
}

func TestEngine_NilPolicy(t *testing.T) {
	engine, _ := newEngine(t)

	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), nil))
}

func TestEngine_Disabled(t *testing.T) {
	engine, _ := newEngine(t)
	policy := &models.FallbackPolicy{Kind: models.FallbackDisabled}

	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), policy))
}

func TestEngine_FlatRate(t *testing.T) {
	engine, _ := newEngine(t)
	policy := &models.FallbackPolicy{Kind: models.FallbackFlatRate, FlatRateAmount: 9.99, Currency: "USD"}

	quotes := engine.Quotes(context.Background(), "m-1", testShipment(), policy)

	require.Len(t, quotes, 1)
	assert.Equal(t, models.FallbackCarrierCode, quotes[0].CarrierCode)
	assert.Equal(t, 9.99, quotes[0].Amount)
	assert.Equal(t, "USD", quotes[0].Currency)
	assert.NotEmpty(t, quotes[0].ID)
	assert.NotEmpty(t, quotes[0].Message)
}

func TestEngine_FlatRateMisconfigured(t *testing.T) {
	engine, _ := newEngine(t)

	missingCurrency := &models.FallbackPolicy{Kind: models.FallbackFlatRate, FlatRateAmount: 9.99}
	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), missingCurrency))

	missingAmount := &models.FallbackPolicy{Kind: models.FallbackFlatRate, Currency: "USD"}
	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), missingAmount))
}

func TestEngine_CachedRatesReplay(t *testing.T) {
	engine, rc := newEngine(t)
	ctx := context.Background()
	shipment := testShipment()
	rc.SaveSnapshot(ctx, "m-1", shipment, []models.RateQuote{
		{ID: "orig-1", CarrierCode: "fedex", ServiceCode: "FEDEX_GROUND", ServiceName: "FedEx Ground", Amount: 12.50, Currency: "USD"},
	})
	policy := &models.FallbackPolicy{Kind: models.FallbackCachedRates, TTLSeconds: 3600}

	quotes := engine.Quotes(ctx, "m-1", shipment, policy)

	require.Len(t, quotes, 1)
	assert.Equal(t, models.FallbackCarrierCode, quotes[0].CarrierCode)
	assert.NotEqual(t, "orig-1", quotes[0].ID)
	assert.Equal(t, "FedEx Ground (cached)", quotes[0].ServiceName)
	assert.Equal(t, 12.50, quotes[0].Amount)
	assert.Nil(t, quotes[0].OriginalProviderRate)
}

func TestEngine_CachedRatesOlderThanPolicyTTL(t *testing.T) {
	backend := cache.NewLocalCache(time.Minute, time.Minute)
	engine := New(ratecache.New(backend, 0, 0, nil), nil)
	ctx := context.Background()
	shipment := testShipment()

	stale, err := json.Marshal(map[string]interface{}{
		"quotes":   []models.RateQuote{{ID: "orig-1", CarrierCode: "fedex", ServiceCode: "FEDEX_GROUND", Amount: 9.50, Currency: "USD"}},
		"saved_at": time.Now().UTC().Add(-2 * time.Hour),
		"currency": "USD",
	})
	require.NoError(t, err)
	key := "rates:m-1:" + ratecache.ShipmentDigest(shipment)
	require.NoError(t, backend.Set(ctx, key, stale, time.Minute))

	policy := &models.FallbackPolicy{Kind: models.FallbackCachedRates, TTLSeconds: 60}
	assert.Empty(t, engine.Quotes(ctx, "m-1", shipment, policy))
}

func TestEngine_CachedRatesWithoutPolicyTTL(t *testing.T) {
	backend := cache.NewLocalCache(time.Minute, time.Minute)
	engine := New(ratecache.New(backend, 0, 0, nil), nil)
	ctx := context.Background()
	shipment := testShipment()

	aged, err := json.Marshal(map[string]interface{}{
		"quotes":   []models.RateQuote{{ID: "orig-1", CarrierCode: "ups", ServiceCode: "03", Amount: 11.00, Currency: "USD"}},
		"saved_at": time.Now().UTC().Add(-2 * time.Hour),
		"currency": "USD",
	})
	require.NoError(t, err)
	key := "rates:m-1:" + ratecache.ShipmentDigest(shipment)
	require.NoError(t, backend.Set(ctx, key, aged, time.Minute))

	// Zero TTL means the policy sets no bound of its own; the snapshot
	// cache TTL is the only limit.
	policy := &models.FallbackPolicy{Kind: models.FallbackCachedRates}
	quotes := engine.Quotes(ctx, "m-1", shipment, policy)
	require.Len(t, quotes, 1)
	assert.Equal(t, 11.00, quotes[0].Amount)
}

func TestEngine_CachedRatesMiss(t *testing.T) {
	engine, _ := newEngine(t)
	policy := &models.FallbackPolicy{Kind: models.FallbackCachedRates}

	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), policy))
}

func TestEngine_UnknownKind(t *testing.T) {
	engine, _ := newEngine(t)
	policy := &models.FallbackPolicy{Kind: "SURGE_PRICING"}

	assert.Empty(t, engine.Quotes(context.Background(), "m-1", testShipment(), policy))
}
