package handler

import (
	"net/http"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Clients (admin)
// ============================================================

func listClientsHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/clients")
		defer span.End()

		clients, err := portal.ListClients(ctx, parseListQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	}
}

func getClientHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/clients/{clientId}")
		defer span.End()

		ov, err := portal.GetClient(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ov)
	}
}

func createClientHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/clients")
		defer span.End()

		var req domain.CreateClientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := portal.CreateClient(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func updateClientHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/clients/{clientId}")
		defer span.End()

		var patch domain.ClientPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		c, err := portal.UpdateClient(ctx, chi.URLParam(r, "clientId"), &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteClientHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/clients/{clientId}")
		defer span.End()

		var req domain.DeleteClientRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := portal.DeleteClient(ctx, chi.URLParam(r, "clientId"), req.ConfirmName); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
