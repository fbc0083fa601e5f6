package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, CarrierConfig.Validate())

	bad := Config{MaxFailures: 0, Timeout: time.Second, MaxConcurrentRequests: 1}
	assert.Error(t, bad.Validate())
	bad = Config{MaxFailures: 1, Timeout: 0, MaxConcurrentRequests: 1}
	assert.Error(t, bad.Validate())
}

func TestExecutePassesThroughResults(t *testing.T) {
	b := New("test", CarrierConfig, logging.NewDefaultLogger())

	result, err := b.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	wantErr := fmt.Errorf("carrier down")
	_, err = b.Execute(func() (interface{}, error) {
		return nil, wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("flaky", Config{MaxFailures: 3, Timeout: time.Minute, MaxConcurrentRequests: 1}, logging.NewDefaultLogger())

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("boom")
		})
		require.Error(t, err)
	}
	assert.True(t, b.IsOpen())

	_, err := b.Execute(func() (interface{}, error) {
		t.Fatal("open breaker must not execute")
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestConfigErrorsDoNotTripBreaker(t *testing.T) {
	b := New("configured", Config{MaxFailures: 2, Timeout: time.Minute, MaxConcurrentRequests: 1}, logging.NewDefaultLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (interface{}, error) {
			return nil, errors.ProviderConfigurationError("fedex", "missing credentials")
		})
		require.Error(t, err)
	}
	assert.False(t, b.IsOpen())
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	b := New("bad-config", Config{}, logging.NewDefaultLogger())

	result, err := b.Execute(func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
