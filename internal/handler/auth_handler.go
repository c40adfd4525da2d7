package handler

import (
	"net/http"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication
// ============================================================

func accessCodeLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/access-code")
		defer span.End()

		var req domain.AccessCodeLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.LoginWithAccessCode(ctx, req.AccessCode, clientSource(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func adminLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/admin")
		defer span.End()

		var req domain.AdminLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.LoginAdmin(ctx, req.Password, clientSource(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type meResponse struct {
	Role       string `json:"role"`
	ClientID   string `json:"clientId,omitempty"`
	ClientName string `json:"clientName,omitempty"`
}

// meHandler lets the frontend restore a session from a stored token.
func meHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/auth/me")
		defer span.End()

		actor := ActorFromContext(ctx)
		resp := meResponse{Role: actor.Role(), ClientID: actor.ClientID()}
		if actor.IsClient() {
			ov, err := portal.GetClient(ctx, actor.ClientID())
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			resp.ClientName = ov.Client.DisplayName()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
