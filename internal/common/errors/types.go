package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeProviderConfig represents missing or invalid merchant carrier credentials.
	// Fatal for that provider only, never for the whole request.
	ErrTypeProviderConfig ErrorType = "provider_configuration"
	// ErrTypeCarrierRate represents a failed carrier rate call
	ErrTypeCarrierRate ErrorType = "carrier_rate"
	// ErrTypeRateUnavailable represents the terminal "no quotes survived" failure
	ErrTypeRateUnavailable ErrorType = "shipping_rate_unavailable"
	// ErrTypeLabelGeneration represents a failed label creation
	ErrTypeLabelGeneration ErrorType = "label_generation_failed"
	// ErrTypeTrackingUnavailable represents a failed tracking lookup
	ErrTypeTrackingUnavailable ErrorType = "tracking_info_unavailable"
	// ErrTypeOperationNotSupported represents an operation a provider cannot perform
	ErrTypeOperationNotSupported ErrorType = "operation_not_supported"
	// ErrTypeSelectedRateInvalid represents an expired or unknown quote id
	ErrTypeSelectedRateInvalid ErrorType = "selected_rate_invalid"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ProviderConfigurationError creates an error for missing or invalid merchant credentials
func ProviderConfigurationError(carrier, msg string) *AppError {
	return &AppError{
		Type:    ErrTypeProviderConfig,
		Message: msg,
		Context: map[string]interface{}{"carrier": carrier},
	}
}

// CarrierRateError creates an error for a failed carrier rate call
func CarrierRateError(carrier string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeCarrierRate,
		Message: fmt.Sprintf("carrier %s failed to return rates", carrier),
		Cause:   cause,
		Context: map[string]interface{}{"carrier": carrier},
	}
}

// ShippingRateUnavailableError creates the terminal rate aggregation error
func ShippingRateUnavailableError() *AppError {
	return &AppError{
		Type:    ErrTypeRateUnavailable,
		Message: "no shipping rates available for this shipment",
	}
}

// LabelGenerationFailedError creates an error for a failed label creation
func LabelGenerationFailedError(carrier string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeLabelGeneration,
		Message: fmt.Sprintf("carrier %s failed to generate label", carrier),
		Cause:   cause,
		Context: map[string]interface{}{"carrier": carrier},
	}
}

// TrackingInfoUnavailableError creates an error for a failed tracking lookup
func TrackingInfoUnavailableError(trackingNumber string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTrackingUnavailable,
		Message: "tracking information unavailable",
		Cause:   cause,
		Context: map[string]interface{}{"tracking_number": trackingNumber},
	}
}

// OperationNotSupportedError creates an error for an unsupported provider operation
func OperationNotSupportedError(carrier, operation string) *AppError {
	return &AppError{
		Type:    ErrTypeOperationNotSupported,
		Message: fmt.Sprintf("carrier %s does not support %s", carrier, operation),
		Context: map[string]interface{}{"carrier": carrier, "operation": operation},
	}
}

// SelectedRateInvalidError creates an error for an expired or unknown quote id
func SelectedRateInvalidError(rateID string) *AppError {
	return &AppError{
		Type:    ErrTypeSelectedRateInvalid,
		Message: "selected rate is invalid or has expired",
		Context: map[string]interface{}{"rate_id": rateID},
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// IsType checks if an error is of a specific type, unwrapping as needed
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}

// As unwraps err into an *AppError if one is present in the chain.
func As(err error, target **AppError) bool {
	return errors.As(err, target)
}

// GetType returns the error type if it's an AppError, otherwise ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}
