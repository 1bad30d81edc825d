package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// submitComplaintHandler relays a validated complaint document to the
// document store. The body is decoded as a free-form map: the wire keys
// are the contract, the handler never re-shapes them.
func submitComplaintHandler(svc *service.ComplaintsService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/complaints")
		defer span.End()

		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			if errors.As(err, new(*http.MaxBytesError)) {
				writeError(w, http.StatusRequestEntityTooLarge, "Requête trop volumineuse")
				return
			}
			writeError(w, http.StatusBadRequest, "Corps de requête invalide")
			return
		}

		start := time.Now()
		ack, err := svc.Submit(ctx, doc)
		if err != nil {
			handleServiceError(w, err, metrics, logger)
			return
		}
		span.SetAttributes(attribute.String("complaint.tracking_id", ack.TrackingID))
		logger.Debug("complaint relayed",
			zap.String("tracking_id", ack.TrackingID),
			zap.Duration("elapsed", time.Since(start)),
		)

		writeJSON(w, http.StatusCreated, ack)
	}
}

// complaintStatusHandler reports where a tracked submission stands.
func complaintStatusHandler(svc *service.ComplaintsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/complaints/{trackingId}/status")
		defer span.End()

		trackingID := chi.URLParam(r, "trackingId")
		if _, err := uuid.Parse(trackingID); err != nil {
			writeError(w, http.StatusBadRequest, "Identifiant de suivi invalide")
			return
		}

		status, ok := svc.Status(ctx, trackingID)
		if !ok {
			writeError(w, http.StatusNotFound, "Soumission inconnue ou expirée")
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
