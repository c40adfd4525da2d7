package handler

import (
	"net/http"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Invoices
// ============================================================

func listInvoicesHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/invoices")
		defer span.End()

		invoices, err := portal.ListInvoices(ctx, parseListQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoices)
	}
}

func clientInvoicesHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/invoices")
		defer span.End()

		invoices, err := portal.ClientInvoices(ctx, ActorFromContext(ctx), parseListQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, invoices)
	}
}

func createInvoiceHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/invoices")
		defer span.End()

		var req domain.CreateInvoiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		inv, err := portal.CreateInvoice(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}

func setInvoiceStatusHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/invoices/{invoiceId}/status")
		defer span.End()

		var req domain.InvoiceStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		inv, err := portal.SetInvoiceStatus(ctx, chi.URLParam(r, "invoiceId"), req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func payInvoiceHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/invoices/{invoiceId}/pay")
		defer span.End()

		inv, err := portal.PayInvoice(ctx, ActorFromContext(ctx), chi.URLParam(r, "invoiceId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func deleteInvoiceHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/invoices/{invoiceId}")
		defer span.End()

		if err := portal.DeleteInvoice(ctx, chi.URLParam(r, "invoiceId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
