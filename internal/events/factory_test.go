package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

func TestNewPublisherDefaultsToNop(t *testing.T) {
	pub, err := NewPublisher(context.Background(), Config{}, logging.NewDefaultLogger())
	require.NoError(t, err)
	assert.IsType(t, &NopPublisher{}, pub)

	assert.NoError(t, pub.Publish(context.Background(), Event{Type: TypeRatesQuoted}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisherUnknownBackend(t *testing.T) {
	_, err := NewPublisher(context.Background(), Config{Backend: "carrier-pigeon"}, logging.NewDefaultLogger())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestNewPublisherRejectsIncompleteBackendConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"rabbitmq without url", Config{Backend: BackendRabbitMQ}},
		{"kafka without brokers", Config{Backend: BackendKafka}},
		{"gcp without project", Config{Backend: BackendGCP}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPublisher(context.Background(), tt.config, logging.NewDefaultLogger())
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}
