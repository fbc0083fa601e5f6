package fallbackprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/models"
	"shipping-gateway/internal/providers"
)

func TestCodeIsReserved(t *testing.T) {
	assert.Equal(t, models.FallbackCarrierCode, New().Code())
}

func TestGetRatesReturnsNothing(t *testing.T) {
	quotes, err := New().GetRates(context.Background(), &models.ShipmentDetails{}, nil)
	require.NoError(t, err)
	assert.Nil(t, quotes)
}

func TestCreateLabelNotSupported(t *testing.T) {
	_, err := New().CreateLabel(context.Background(), &providers.LabelRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeOperationNotSupported))
}

func TestGetTrackingDetailsNotSupported(t *testing.T) {
	_, err := New().GetTrackingDetails(context.Background(), "TRACK123", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeOperationNotSupported))
}
