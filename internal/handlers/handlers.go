// Package handlers exposes the gateway's REST API: rate aggregation, label
// creation, tracking lookup, and merchant configuration management. All
// endpoints under /api are merchant-scoped through the auth middleware.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"shipping-gateway/internal/aggregator"
	"shipping-gateway/internal/auth"
	"shipping-gateway/internal/common/errors"
	"shipping-gateway/internal/common/logging"
	"shipping-gateway/internal/middleware"
	"shipping-gateway/internal/storage"
)

// Handlers carries the dependencies of every endpoint.
type Handlers struct {
	store    storage.Store
	rates    *aggregator.Service
	labels   *aggregator.LabelResolver
	tracking *aggregator.TrackingResolver
	auth     *auth.Auth
	health   func() error
	logger   logging.Logger
}

// New creates the handler set. The health func reports backend readiness
// for the /health endpoint; nil means always healthy.
func New(store storage.Store, rates *aggregator.Service, labels *aggregator.LabelResolver, tracking *aggregator.TrackingResolver, authHandler *auth.Auth, health func() error, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		store:    store,
		rates:    rates,
		labels:   labels,
		tracking: tracking,
		auth:     authHandler,
		health:   health,
		logger:   logger,
	}
}

// Router builds the full route table. apiMiddleware runs on merchant-scoped
// routes after authentication.
func (h *Handlers) Router(apiMiddleware ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.auth.Middleware)
	api.Use(apiMiddleware...)

	api.HandleFunc("/rates", h.GetRates).Methods(http.MethodPost)
	api.HandleFunc("/labels", h.CreateLabel).Methods(http.MethodPost)
	api.HandleFunc("/tracking/{number}", h.GetTracking).Methods(http.MethodGet)

	api.HandleFunc("/rules", h.ListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", h.CreateRule).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}", h.GetRule).Methods(http.MethodGet)
	api.HandleFunc("/rules/{id}", h.UpdateRule).Methods(http.MethodPut)
	api.HandleFunc("/rules/{id}", h.DeleteRule).Methods(http.MethodDelete)

	api.HandleFunc("/carriers", h.ListProviderConfigs).Methods(http.MethodGet)
	api.HandleFunc("/carriers/{code}", h.GetProviderConfig).Methods(http.MethodGet)
	api.HandleFunc("/carriers/{code}", h.UpsertProviderConfig).Methods(http.MethodPut)
	api.HandleFunc("/carriers/{code}", h.DeleteProviderConfig).Methods(http.MethodDelete)

	api.HandleFunc("/fallback-policy", h.GetFallbackPolicy).Methods(http.MethodGet)
	api.HandleFunc("/fallback-policy", h.SetFallbackPolicy).Methods(http.MethodPut)

	return router
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.logger.Warn("Failed to encode response", logging.Err(err))
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// sendError maps the error taxonomy onto HTTP status codes.
func (h *Handlers) sendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	errType := ""

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		errType = string(appErr.Type)
		message = appErr.Message
		switch appErr.Type {
		case errors.ErrTypeValidation:
			status = http.StatusBadRequest
		case errors.ErrTypeAuth:
			status = http.StatusUnauthorized
		case errors.ErrTypeNotFound:
			status = http.StatusNotFound
		case errors.ErrTypeSelectedRateInvalid:
			status = http.StatusUnprocessableEntity
		case errors.ErrTypeOperationNotSupported:
			status = http.StatusUnprocessableEntity
		case errors.ErrTypeRateUnavailable:
			status = http.StatusServiceUnavailable
		case errors.ErrTypeTrackingUnavailable:
			status = http.StatusNotFound
		case errors.ErrTypeProviderConfig:
			status = http.StatusBadRequest
		case errors.ErrTypeCarrierRate, errors.ErrTypeLabelGeneration, errors.ErrTypeConnection:
			status = http.StatusBadGateway
		case errors.ErrTypeTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", err)
	}
	h.sendJSON(w, status, errorResponse{Error: message, Type: errType})
}

// Health reports process and backend health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			h.sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "reason": err.Error()})
			return
		}
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
