package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/rules"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func sampleRule(id string, priority int) *rules.ShippingRule {
	return &rules.ShippingRule{
		ID:         id,
		MerchantID: "m-1",
		Name:       "Free shipping over $100",
		Priority:   priority,
		IsActive:   true,
		Conditions: []rules.Condition{
			{Type: rules.ConditionOrderValue, Operator: rules.OpGTE, Value: "100"},
		},
		Action: rules.Action{
			Carriers:          []string{"ups"},
			OfferFreeShipping: true,
			Message:           "Free shipping!",
		},
	}
}

func TestRuleCRUD(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	rule := sampleRule("r-1", 5)
	require.NoError(t, adapter.CreateRule(ctx, rule))

	loaded, err := adapter.GetRule(ctx, "m-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, rule.Name, loaded.Name)
	require.Len(t, loaded.Conditions, 1)
	assert.Equal(t, rules.ConditionOrderValue, loaded.Conditions[0].Type)
	assert.True(t, loaded.Action.OfferFreeShipping)

	loaded.Name = "Renamed"
	loaded.IsActive = false
	require.NoError(t, adapter.UpdateRule(ctx, loaded))

	updated, err := adapter.GetRule(ctx, "m-1", "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)

	require.NoError(t, adapter.DeleteRule(ctx, "m-1", "r-1"))
	_, err = adapter.GetRule(ctx, "m-1", "r-1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestListActiveRules_OrderAndFilter(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.CreateRule(ctx, sampleRule("r-high", 10)))
	require.NoError(t, adapter.CreateRule(ctx, sampleRule("r-low", 1)))
	inactive := sampleRule("r-off", 5)
	inactive.IsActive = false
	require.NoError(t, adapter.CreateRule(ctx, inactive))

	active, err := adapter.ListActiveRules(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "r-low", active[0].ID)
	assert.Equal(t, "r-high", active[1].ID)

	all, err := adapter.ListRules(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRules_MerchantScoped(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.CreateRule(ctx, sampleRule("r-1", 1)))

	_, err := adapter.GetRule(ctx, "m-other", "r-1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	err = adapter.DeleteRule(ctx, "m-other", "r-1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestProviderConfigUpsert(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	cfg := &models.MerchantProviderConfig{
		MerchantID:    "m-1",
		CarrierCode:   "fedex",
		APIKey:        "key-1",
		APISecret:     "secret-1",
		AccountNumber: "acct-1",
		Enabled:       true,
		CustomProperties: map[string]string{
			"hub": "MEM",
		},
	}
	require.NoError(t, adapter.UpsertProviderConfig(ctx, cfg))

	loaded, err := adapter.GetProviderConfig(ctx, "m-1", "fedex")
	require.NoError(t, err)
	assert.Equal(t, "key-1", loaded.APIKey)
	assert.Equal(t, "MEM", loaded.CustomProperties["hub"])

	cfg.APIKey = "key-2"
	cfg.Enabled = false
	require.NoError(t, adapter.UpsertProviderConfig(ctx, cfg))

	reloaded, err := adapter.GetProviderConfig(ctx, "m-1", "fedex")
	require.NoError(t, err)
	assert.Equal(t, "key-2", reloaded.APIKey)
	assert.False(t, reloaded.Enabled)

	configs, err := adapter.ListProviderConfigs(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, configs, 1)

	require.NoError(t, adapter.DeleteProviderConfig(ctx, "m-1", "fedex"))
	_, err = adapter.GetProviderConfig(ctx, "m-1", "fedex")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestFallbackPolicy(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	policy, err := adapter.GetFallbackPolicy(ctx, "m-1")
	require.NoError(t, err)
	assert.Nil(t, policy)

	require.NoError(t, adapter.SetFallbackPolicy(ctx, "m-1", &models.FallbackPolicy{
		Kind:           models.FallbackFlatRate,
		FlatRateAmount: 7.50,
		Currency:       "USD",
	}))

	policy, err = adapter.GetFallbackPolicy(ctx, "m-1")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, models.FallbackFlatRate, policy.Kind)
	assert.Equal(t, 7.50, policy.FlatRateAmount)

	// Replacing the policy overwrites, one policy per merchant.
	require.NoError(t, adapter.SetFallbackPolicy(ctx, "m-1", &models.FallbackPolicy{
		Kind: models.FallbackCachedRates,
	}))
	policy, err = adapter.GetFallbackPolicy(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.FallbackCachedRates, policy.Kind)
}
