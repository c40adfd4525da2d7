package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/handler"
	"github.com/boddenberg/client-portal-go/internal/infra/cache"
	"github.com/boddenberg/client-portal-go/internal/infra/events"
	"github.com/boddenberg/client-portal-go/internal/infra/firebase"
	"github.com/boddenberg/client-portal-go/internal/infra/firebase/firebasetest"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/infra/resilience"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	dbToken       = "integration-db-token"
	adminPassword = "integration-admin-pass"
)

type env struct {
	db     *firebasetest.Server
	router http.Handler
}

// newEnv wires the full stack against an in-memory Realtime Database.
func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	db := firebasetest.NewServer(dbToken)
	t.Cleanup(db.Close)

	cb := resilience.NewCircuitBreaker("integration", firebase.IsExpectedFailure)
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}
	store := firebase.NewClient(&http.Client{Timeout: 5 * time.Second}, db.URL, dbToken, cb, cfg, logger)

	snapshots := cache.New[*aggregate.Snapshot](5 * time.Minute)
	t.Cleanup(snapshots.Close)
	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)

	portal := service.NewPortal(store, snapshots, hub, metrics, logger, service.Options{})

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(store, service.AuthConfig{
		JWTSecret:         "integration-secret-integration-secret",
		TokenTTL:          time.Hour,
		AdminPasswordHash: string(hash),
		LoginPerMinute:    600,
		LoginBurst:        50,
	}, metrics, logger)

	router := handler.NewRouter(handler.Deps{Portal: portal, Auth: auth, Hub: hub}, metrics, logger)
	return &env{db: db, router: router}
}

func (e *env) call(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *env) login(t *testing.T, path string, body any) domain.LoginResponse {
	t.Helper()
	rec := e.call(t, http.MethodPost, path, "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.LoginResponse](t, rec)
}

// TestIntegration_FullFlow walks a client from onboarding to a paid invoice.
func TestIntegration_FullFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.call(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	admin := e.login(t, "/v1/auth/admin", domain.AdminLoginRequest{Password: adminPassword}).Token

	// --- Onboard client ---
	rec = e.call(t, http.MethodPost, "/v1/admin/clients", admin, domain.CreateClientRequest{
		Name: "Acme", CompanyName: "Acme Ltd", Email: "ops@acme.test", AccessCode: "PRJ-2025-TEST",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[domain.Client](t, rec)
	assert.Equal(t, map[string]any{"clientId": client.ID}, e.db.Value("accessCodes/PRJ-2025-TEST"))

	// --- Unknown access code ---
	rec = e.call(t, http.MethodPost, "/v1/auth/access-code", "", domain.AccessCodeLoginRequest{AccessCode: "PRJ-2025-NOPE"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid access code")

	login := e.login(t, "/v1/auth/access-code", domain.AccessCodeLoginRequest{AccessCode: " prj-2025-test "})
	assert.Equal(t, client.ID, login.ClientID)
	assert.Equal(t, "Acme Ltd", login.ClientName)
	token := login.Token

	// --- Project with a payment plan ---
	total := 1000.0
	rec = e.call(t, http.MethodPost, "/v1/admin/projects", admin, domain.CreateProjectRequest{
		ClientID: client.ID, Name: "Website", DueDate: "2025-06-30",
		Financial: &domain.FinancialInput{TotalCost: &total},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decode[domain.Project](t, rec)

	rec = e.call(t, http.MethodGet, "/v1/me/projects", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), project.ID)

	// --- Approval ---
	rec = e.call(t, http.MethodPost, "/v1/me/projects/"+project.ID+"/approval", token, domain.ApprovalRequest{
		Action: domain.ActionReject, Feedback: "Split the last payment in two",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fin := decode[domain.Financial](t, rec)
	assert.Equal(t, domain.ApprovalChangeRequested, fin.ApprovalStatus)
	assert.Equal(t, "Split the last payment in two", fin.ChangeRequest)

	rec = e.call(t, http.MethodGet, "/v1/notifications", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	adminInbox := decode[[]domain.Notification](t, rec)
	require.Len(t, adminInbox, 1)
	assert.Equal(t, domain.AdminUserID, adminInbox[0].UserID)

	// --- Invoice and payment ---
	rec = e.call(t, http.MethodPost, "/v1/admin/invoices", admin, domain.CreateInvoiceRequest{
		ClientID: client.ID, ProjectID: project.ID, Amount: 400, DueDate: "2025-07-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decode[domain.Invoice](t, rec)
	assert.Equal(t, domain.PaymentPending, invoice.Status)

	rec = e.call(t, http.MethodPost, "/v1/me/invoices/"+invoice.ID+"/pay", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.PaymentPaid, decode[domain.Invoice](t, rec).Status)

	rec = e.call(t, http.MethodGet, "/v1/me/projects/"+project.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[aggregate.ProjectDetail](t, rec)
	require.NotNil(t, detail.Financial)
	assert.InDelta(t, 400, detail.Financial.TotalPaid, 0.001)
	assert.InDelta(t, 600, detail.Financial.Balance, 0.001)

	// --- Client inbox: new project + new invoice ---
	rec = e.call(t, http.MethodGet, "/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[domain.UnreadCountResponse](t, rec).Unread)

	rec = e.call(t, http.MethodPost, "/v1/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[domain.MarkAllReadResponse](t, rec).Marked)

	rec = e.call(t, http.MethodGet, "/v1/notifications/unread-count", admin, nil)
	assert.Equal(t, 2, decode[domain.UnreadCountResponse](t, rec).Unread)
}
