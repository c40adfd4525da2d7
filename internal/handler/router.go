package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/infra/events"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps are the services the router dispatches to. Nil services disable
// their routes with 503 so operational endpoints still work.
type Deps struct {
	Portal      *service.Portal
	Auth        *service.AuthService
	Hub         *events.Hub
	CORSOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Portal, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if deps.Auth == nil || deps.Portal == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "portal service unavailable")
			}))
			return
		}
		portal, authSvc := deps.Portal, deps.Auth

		// =============================================
		// Authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/access-code", accessCodeLoginHandler(authSvc, logger))
			r.Post("/admin", adminLoginHandler(authSvc, logger))
			r.With(JWTAuthMiddleware(authSvc, logger)).Get("/me", meHandler(portal, logger))
		})

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			// =============================================
			// Notifications (admin and clients)
			// =============================================
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", listNotificationsHandler(portal, logger))
				r.Get("/unread-count", unreadCountHandler(portal, logger))
				r.Post("/read-all", markAllReadHandler(portal, logger))
				r.Post("/{notificationId}/read", markReadHandler(portal, logger))
				r.Delete("/{notificationId}", deleteNotificationHandler(portal, logger))
			})

			// =============================================
			// Change feed (SSE)
			// =============================================
			r.Get("/events", eventsHandler(deps.Hub, logger))

			// =============================================
			// Admin
			// =============================================
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Get("/dashboard", adminDashboardHandler(portal, logger))
				r.Get("/metrics", metricsSummaryHandler(metrics))

				r.Route("/clients", func(r chi.Router) {
					r.Get("/", listClientsHandler(portal, logger))
					r.Post("/", createClientHandler(portal, logger))
					r.Get("/{clientId}", getClientHandler(portal, logger))
					r.Patch("/{clientId}", updateClientHandler(portal, logger))
					r.Delete("/{clientId}", deleteClientHandler(portal, logger))
				})

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", listProjectsHandler(portal, logger))
					r.Post("/", createProjectHandler(portal, logger))
					r.Get("/{projectId}", getProjectHandler(portal, logger))
					r.Patch("/{projectId}", updateProjectHandler(portal, logger))
					r.Delete("/{projectId}", deleteProjectHandler(portal, logger))
					r.Put("/{projectId}/financial", updateFinancialHandler(portal, logger))
					r.Post("/{projectId}/notes", addNoteHandler(portal, logger))
					r.Post("/{projectId}/milestones", addMilestoneHandler(portal, logger))
					r.Patch("/{projectId}/milestones/{milestoneId}", updateMilestoneHandler(portal, logger))
					r.Post("/{projectId}/documents", addDocumentHandler(portal, logger))
				})

				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", listInvoicesHandler(portal, logger))
					r.Post("/", createInvoiceHandler(portal, logger))
					r.Put("/{invoiceId}/status", setInvoiceStatusHandler(portal, logger))
					r.Delete("/{invoiceId}", deleteInvoiceHandler(portal, logger))
				})

				r.Route("/team", func(r chi.Router) {
					r.Get("/", listTeamHandler(portal, logger))
					r.Post("/", createTeamMemberHandler(portal, logger))
					r.Patch("/{memberId}", updateTeamMemberHandler(portal, logger))
					r.Delete("/{memberId}", deleteTeamMemberHandler(portal, logger))
				})
			})

			// =============================================
			// Client portal
			// =============================================
			r.Route("/me", func(r chi.Router) {
				r.Use(RequireClient)

				r.Get("/dashboard", clientDashboardHandler(portal, logger))
				r.Get("/projects", clientProjectsHandler(portal, logger))
				r.Get("/projects/{projectId}", getProjectHandler(portal, logger))
				r.Post("/projects/{projectId}/approval", approvalHandler(portal, logger))
				r.Post("/projects/{projectId}/notes", addNoteHandler(portal, logger))
				r.Get("/invoices", clientInvoicesHandler(portal, logger))
				r.Post("/invoices/{invoiceId}/pay", payInvoiceHandler(portal, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(portal *service.Portal, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "portal-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if portal != nil {
			start := time.Now()
			err := portal.Ping(ctx)
			health := domain.ServiceHealth{
				Name: "record-store", Status: "healthy",
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			}
			if err != nil {
				logger.Warn("healthz: record store unreachable", zap.Error(err))
				health.Status = "degraded"
				health.Error = err.Error()
			}
			services = append(services, health)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Summary())
	}
}
