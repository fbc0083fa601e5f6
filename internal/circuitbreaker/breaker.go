// Package circuitbreaker wraps Sony's gobreaker for carrier API calls.
// A carrier that keeps failing stops being queried for a while instead of
// burning the per-request timeout on every aggregation.
package circuitbreaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before transitioning to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the number of requests allowed in half-open state
	MaxConcurrentRequests int
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// CarrierConfig is tuned for carrier HTTP APIs: trip fast, recover quickly.
var CarrierConfig = Config{
	MaxFailures:           3,
	Timeout:               30 * time.Second,
	MaxConcurrentRequests: 2,
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// Breaker wraps a gobreaker instance for a single carrier.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a circuit breaker named after the carrier it protects.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if err := config.Validate(); err != nil {
		if logger != nil {
			logger.Warn("Invalid circuit breaker config, using defaults",
				logging.String("name", name),
				logging.Err(err),
			)
		}
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Configuration problems are the merchant's, not the carrier's;
			// they must not poison the breaker.
			switch errors.GetType(err) {
			case errors.ErrTypeProviderConfig, errors.ErrTypeValidation, errors.ErrTypeOperationNotSupported:
				return true
			}
			return false
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs fn within the circuit breaker.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.breaker.Execute(fn)

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, errors.ConnectionError(fmt.Sprintf("circuit breaker %s is open", b.name), err)
	}
	return result, err
}

// IsOpen returns true if the circuit breaker is open
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
