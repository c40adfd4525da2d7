package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost  = 12
	tokenIssuer = "client-portal"

	loginAccessCode = "access_code"
	loginAdmin      = "admin"
)

// AuthStore is what authentication needs from the record store.
type AuthStore interface {
	port.AccessCodeStore
	GetClient(ctx context.Context, id string) (*domain.Client, error)
}

// AuthConfig configures AuthService.
type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AdminPasswordHash string
	LoginPerMinute    int
	LoginBurst        int
}

// AuthService resolves access codes and issues session tokens.
type AuthService struct {
	store     AuthStore
	jwtSecret []byte
	tokenTTL  time.Duration
	adminHash []byte
	limiter   *keyedLimiter
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store AuthStore, cfg AuthConfig, metrics *observability.Metrics, logger *zap.Logger) *AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		store:     store,
		jwtSecret: []byte(cfg.JWTSecret),
		tokenTTL:  ttl,
		adminHash: []byte(cfg.AdminPasswordHash),
		limiter:   newKeyedLimiter(cfg.LoginPerMinute, cfg.LoginBurst),
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// ResolveAccessCode: accessCodes/{code} -> clientId
// ============================================================

// ResolveAccessCode maps a human-entered code to a client id. An unknown or
// malformed code is found=false with no error; only store failures error.
func (s *AuthService) ResolveAccessCode(ctx context.Context, code string) (string, bool, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.ResolveAccessCode")
	defer span.End()

	code = domain.NormalizeAccessCode(code)
	if domain.ValidateAccessCode(code) != nil {
		return "", false, nil
	}
	clientID, found, err := s.store.LookupAccessCode(ctx, code)
	if err != nil {
		return "", false, fmt.Errorf("lookup access code: %w", err)
	}
	return clientID, found, nil
}

// ============================================================
// Login: POST /v1/auth/access-code, POST /v1/auth/admin
// ============================================================

// LoginWithAccessCode signs a client in. source keys the attempt limiter.
func (s *AuthService) LoginWithAccessCode(ctx context.Context, code, source string) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.LoginWithAccessCode")
	defer span.End()

	if !s.limiter.Allow(source) {
		s.metrics.IncrLogin(loginAccessCode, "throttled")
		return nil, &domain.ErrRateLimited{Key: source}
	}

	clientID, found, err := s.ResolveAccessCode(ctx, code)
	if err != nil {
		s.metrics.IncrLogin(loginAccessCode, "error")
		return nil, err
	}
	if !found {
		s.metrics.IncrLogin(loginAccessCode, "failure")
		s.logger.Warn("login: unknown access code", zap.String("source", source))
		return nil, &domain.ErrInvalidAccessCode{}
	}

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			// dangling mapping left behind by a deleted client
			s.metrics.IncrLogin(loginAccessCode, "failure")
			s.logger.Warn("login: access code points to missing client", zap.String("client_id", clientID))
			return nil, &domain.ErrInvalidAccessCode{}
		}
		s.metrics.IncrLogin(loginAccessCode, "error")
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client.Status == domain.ClientInactive {
		s.metrics.IncrLogin(loginAccessCode, "failure")
		return nil, &domain.ErrForbidden{Action: "log in with an inactive account"}
	}

	actor, err := domain.ClientActor(client.ID)
	if err != nil {
		return nil, err
	}
	token, err := s.signToken(actor)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.metrics.IncrLogin(loginAccessCode, "success")
	s.logger.Info("client logged in", zap.String("client_id", client.ID))
	return &domain.LoginResponse{
		Token:      token,
		ExpiresIn:  int(s.tokenTTL.Seconds()),
		Role:       actor.Role(),
		ClientID:   client.ID,
		ClientName: client.DisplayName(),
	}, nil
}

// LoginAdmin checks the admin password against the configured bcrypt hash.
func (s *AuthService) LoginAdmin(ctx context.Context, password, source string) (*domain.LoginResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.LoginAdmin")
	defer span.End()

	if !s.limiter.Allow(source) {
		s.metrics.IncrLogin(loginAdmin, "throttled")
		return nil, &domain.ErrRateLimited{Key: source}
	}
	if len(s.adminHash) == 0 {
		s.metrics.IncrLogin(loginAdmin, "failure")
		return nil, &domain.ErrUnauthorized{Message: "admin login is not configured"}
	}
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		s.metrics.IncrLogin(loginAdmin, "failure")
		s.logger.Warn("login: wrong admin password", zap.String("source", source))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	actor := domain.AdminActor()
	token, err := s.signToken(actor)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.metrics.IncrLogin(loginAdmin, "success")
	s.logger.Info("admin logged in")
	return &domain.LoginResponse{
		Token:     token,
		ExpiresIn: int(s.tokenTTL.Seconds()),
		Role:      actor.Role(),
	}, nil
}

// HashPassword produces the bcrypt hash expected in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", &domain.ErrValidation{Field: "password", Message: "must be at least 8 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ============================================================
// Tokens: used by middleware
// ============================================================

// Claims are the custom claims in session tokens.
type Claims struct {
	Role     string `json:"role"`
	ClientID string `json:"clientId,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) signToken(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     actor.Role(),
		ClientID: actor.ClientID(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses a session token back into its actor.
func (s *AuthService) ValidateToken(tokenString string) (domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return domain.Actor{}, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Actor{}, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	switch claims.Role {
	case "admin":
		return domain.AdminActor(), nil
	case "client":
		actor, err := domain.ClientActor(claims.ClientID)
		if err != nil {
			return domain.Actor{}, &domain.ErrUnauthorized{Message: "invalid token"}
		}
		return actor, nil
	}
	return domain.Actor{}, &domain.ErrUnauthorized{Message: "invalid token role"}
}
