package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"

	"go.uber.org/zap"
)

// fieldDetail is one entry of a validation error's details array.
type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeAPIError(w http.ResponseWriter, apiErr *domain.APIError) {
	writeJSON(w, apiErr.Status, apiErr)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeAPIError(w, &domain.APIError{Status: status, Message: msg})
}

// fieldDetails flattens a validation error into a deterministic details
// array, sorted by field name.
func fieldDetails(fields domain.FieldErrors) []fieldDetail {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	details := make([]fieldDetail, 0, len(keys))
	for _, k := range keys {
		details = append(details, fieldDetail{Field: k, Message: fields[k]})
	}
	return details
}

// handleServiceError maps the error taxonomy to the uniform client-facing
// shape. Whatever went wrong downstream, the client always sees
// {"error": ..., "details": ...}. Downstream failures also feed the
// external-errors counter, labeled by the failing service.
func handleServiceError(w http.ResponseWriter, err error, metrics *observability.Metrics, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var functional *domain.ErrFunctional
	var transport *domain.ErrTransport
	var timeout *domain.ErrTimeout
	var configuration *domain.ErrConfiguration

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeAPIError(w, &domain.APIError{
			Status:  http.StatusBadRequest,
			Message: "Validation échouée",
			Details: fieldDetails(validation.Fields),
		})
	case errors.As(err, &functional):
		metrics.IncrExternalError(functional.Service)
		logger.Warn("downstream rejection",
			zap.String("service", functional.Service),
			zap.Int("status", functional.Status),
		)
		writeAPIError(w, &domain.APIError{
			Status:  http.StatusBadGateway,
			Message: "Service en aval a rejeté la demande",
			Details: functional.Body,
		})
	case errors.As(err, &timeout):
		metrics.IncrExternalError(timeout.Operation)
		logger.Error("downstream timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "Délai d'attente dépassé")
	case errors.As(err, &transport):
		metrics.IncrExternalError(transport.Service)
		logger.Error("downstream unreachable", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Service temporairement indisponible")
	case errors.As(err, &configuration):
		logger.Error("configuration error", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Service non configuré")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erreur interne")
	}
}
