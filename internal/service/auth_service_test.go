package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func newTestAuth(t *testing.T, tp *testPortal, cfg service.AuthConfig) *service.AuthService {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	return service.NewAuthService(tp.store, cfg, tp.metrics, zap.NewNop())
}

func TestResolveAccessCode(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	auth := newTestAuth(t, tp, service.AuthConfig{})
	c := tp.mustClient(t, "acme", "PRJ-2025-TEST")
	ctx := context.Background()

	id, found, err := auth.ResolveAccessCode(ctx, "  prj-2025-test ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c.ID, id)

	_, found, err = auth.ResolveAccessCode(ctx, "PRJ-2025-NOPE")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = auth.ResolveAccessCode(ctx, "a/b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginWithAccessCode_TokenRoundTrip(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	auth := newTestAuth(t, tp, service.AuthConfig{TokenTTL: time.Hour})
	c, err := tp.CreateClient(context.Background(), &domain.CreateClientRequest{
		Name: "Jane", CompanyName: "Acme Ltd", Email: "jane@acme.test", AccessCode: "PRJ-2025-TEST",
	})
	require.NoError(t, err)

	resp, err := auth.LoginWithAccessCode(context.Background(), "PRJ-2025-TEST", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "client", resp.Role)
	assert.Equal(t, c.ID, resp.ClientID)
	assert.Equal(t, "Acme Ltd", resp.ClientName)
	assert.Equal(t, 3600, resp.ExpiresIn)

	actor, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.True(t, actor.IsClient())
	assert.Equal(t, c.ID, actor.ClientID())

	assert.Equal(t, int64(1), tp.metrics.Summary().LoginsSucceeded)
}

func TestLoginWithAccessCode_Failures(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	auth := newTestAuth(t, tp, service.AuthConfig{})
	ctx := context.Background()

	_, err := auth.LoginWithAccessCode(ctx, "PRJ-2025-NOPE", "10.0.0.1")
	var invalid *domain.ErrInvalidAccessCode
	require.ErrorAs(t, err, &invalid)

	c := tp.mustClient(t, "gone", "CODE-GONE")
	_, err = tp.UpdateClient(ctx, c.ID, &domain.ClientPatch{Status: ptr(domain.ClientInactive)})
	require.NoError(t, err)
	_, err = auth.LoginWithAccessCode(ctx, "CODE-GONE", "10.0.0.1")
	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)

	// mapping without a client behind it
	require.NoError(t, tp.store.ClaimAccessCode(ctx, "CODE-DANGLING", "no-such-client"))
	_, err = auth.LoginWithAccessCode(ctx, "CODE-DANGLING", "10.0.0.1")
	require.ErrorAs(t, err, &invalid)

	assert.Equal(t, int64(3), tp.metrics.Summary().LoginsFailed)
}

func TestLoginWithAccessCode_RateLimitedPerSource(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	auth := newTestAuth(t, tp, service.AuthConfig{LoginPerMinute: 1, LoginBurst: 2})
	ctx := context.Background()

	for n := 0; n < 2; n++ {
		_, err := auth.LoginWithAccessCode(ctx, "WRONG-CODE", "10.0.0.1")
		var invalid *domain.ErrInvalidAccessCode
		require.ErrorAs(t, err, &invalid)
	}
	_, err := auth.LoginWithAccessCode(ctx, "WRONG-CODE", "10.0.0.1")
	var limited *domain.ErrRateLimited
	require.ErrorAs(t, err, &limited)

	_, err = auth.LoginWithAccessCode(ctx, "WRONG-CODE", "10.0.0.2")
	var invalid *domain.ErrInvalidAccessCode
	require.ErrorAs(t, err, &invalid)
}

func TestLoginAdmin(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := newTestAuth(t, tp, service.AuthConfig{AdminPasswordHash: string(hash)})
	ctx := context.Background()

	_, err = auth.LoginAdmin(ctx, "wrong", "10.0.0.1")
	var unauthorized *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauthorized)

	resp, err := auth.LoginAdmin(ctx, "correct horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Role)
	assert.Empty(t, resp.ClientID)

	actor, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())

	unconfigured := newTestAuth(t, tp, service.AuthConfig{})
	_, err = unconfigured.LoginAdmin(ctx, "correct horse", "10.0.0.1")
	require.ErrorAs(t, err, &unauthorized)
}

func TestValidateToken_Rejects(t *testing.T) {
	tp := newTestPortal(t, service.DeleteBlock)
	auth := newTestAuth(t, tp, service.AuthConfig{})
	var unauthorized *domain.ErrUnauthorized

	_, err := auth.ValidateToken("not-a-jwt")
	require.ErrorAs(t, err, &unauthorized)

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	other := newTestAuth(t, tp, service.AuthConfig{JWTSecret: "another-secret-another-secret-1234", AdminPasswordHash: string(hash)})
	resp, err := other.LoginAdmin(context.Background(), "password1", "x")
	require.NoError(t, err)
	_, err = auth.ValidateToken(resp.Token)
	require.ErrorAs(t, err, &unauthorized)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "client-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	require.ErrorAs(t, err, &unauthorized)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
		Role:             "root",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "client-portal"},
	})
	signed, err = badRole.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	require.ErrorAs(t, err, &unauthorized)
}

func TestHashPassword(t *testing.T) {
	_, err := service.HashPassword("short")
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
}
