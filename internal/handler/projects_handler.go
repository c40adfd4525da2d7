package handler

import (
	"net/http"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Projects
// ============================================================

func listProjectsHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/projects")
		defer span.End()

		projects, err := portal.ListProjects(ctx, parseListQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

func clientProjectsHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/projects")
		defer span.End()

		projects, err := portal.ClientProjects(ctx, ActorFromContext(ctx), parseListQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

// getProjectHandler serves both the admin and the client project page; the
// service scopes clients to their own projects.
func getProjectHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /projects/{projectId}")
		defer span.End()

		detail, err := portal.GetProject(ctx, ActorFromContext(ctx), chi.URLParam(r, "projectId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func createProjectHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/projects")
		defer span.End()

		var req domain.CreateProjectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pr, err := portal.CreateProject(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, pr)
	}
}

func updateProjectHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/projects/{projectId}")
		defer span.End()

		var patch domain.ProjectPatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		pr, err := portal.UpdateProject(ctx, chi.URLParam(r, "projectId"), &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pr)
	}
}

func deleteProjectHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/projects/{projectId}")
		defer span.End()

		if err := portal.DeleteProject(ctx, chi.URLParam(r, "projectId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateFinancialHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/projects/{projectId}/financial")
		defer span.End()

		var in domain.FinancialInput
		if !decodeJSON(w, r, &in) {
			return
		}
		f, err := portal.UpdateFinancial(ctx, chi.URLParam(r, "projectId"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

// addNoteHandler is shared by admin and client routes. Clients may only
// comment on their own projects.
func addNoteHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /projects/{projectId}/notes")
		defer span.End()

		actor := ActorFromContext(ctx)
		projectID := chi.URLParam(r, "projectId")
		var req domain.NoteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if actor.IsClient() {
			if _, err := portal.GetProject(ctx, actor, projectID); err != nil {
				handleServiceError(w, err, logger)
				return
			}
		}
		note, err := portal.AddNote(ctx, actor, projectID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, note)
	}
}

func addMilestoneHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/projects/{projectId}/milestones")
		defer span.End()

		var req domain.MilestoneRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := portal.AddMilestone(ctx, chi.URLParam(r, "projectId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func updateMilestoneHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/admin/projects/{projectId}/milestones/{milestoneId}")
		defer span.End()

		var patch domain.MilestonePatch
		if !decodeJSON(w, r, &patch) {
			return
		}
		m, err := portal.UpdateMilestone(ctx, chi.URLParam(r, "projectId"), chi.URLParam(r, "milestoneId"), &patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func addDocumentHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/projects/{projectId}/documents")
		defer span.End()

		var req domain.DocumentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		doc, err := portal.AddDocument(ctx, ActorFromContext(ctx), chi.URLParam(r, "projectId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

// ============================================================
// Payment plan approval (client)
// ============================================================

func approvalHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/projects/{projectId}/approval")
		defer span.End()

		var req domain.ApprovalRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		f, err := portal.DecidePaymentPlan(ctx, ActorFromContext(ctx), chi.URLParam(r, "projectId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}
