package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"go.uber.org/zap"
)

// accountsEnvelope is the lookup response shape the form expects.
type accountsEnvelope struct {
	OK       bool             `json:"ok"`
	Accounts []domain.Account `json:"accounts"`
}

// accountsLookupHandler resolves the accounts for a client number or phone
// number sent in the body as {"clientId": "..."} or {"phone": "..."}.
func accountsLookupHandler(svc *service.LookupService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/accounts")
		defer span.End()

		var req struct {
			ClientID string `json:"clientId"`
			Phone    string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Corps de requête invalide")
			return
		}
		identifier := req.ClientID
		if identifier == "" {
			identifier = req.Phone
		}

		accounts, err := svc.Lookup(ctx, strings.TrimSpace(identifier))
		if err != nil {
			handleServiceError(w, err, metrics, logger)
			return
		}
		writeJSON(w, http.StatusOK, accountsEnvelope{OK: true, Accounts: accounts})
	}
}

// accountsLookupByQueryHandler is the GET variant taking ?clientId= or ?phone=.
func accountsLookupByQueryHandler(svc *service.LookupService, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/accounts")
		defer span.End()

		identifier := r.URL.Query().Get("clientId")
		if identifier == "" {
			identifier = r.URL.Query().Get("phone")
		}

		accounts, err := svc.Lookup(ctx, strings.TrimSpace(identifier))
		if err != nil {
			handleServiceError(w, err, metrics, logger)
			return
		}
		writeJSON(w, http.StatusOK, accountsEnvelope{OK: true, Accounts: accounts})
	}
}
