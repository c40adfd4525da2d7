package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/handler"
	"github.com/boddenberg/client-portal-go/internal/infra/cache"
	"github.com/boddenberg/client-portal-go/internal/infra/events"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/port"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// --- Config ---
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := service.ParseDeletePolicy(cfg.ClientDeletePolicy)
	if err != nil {
		return err
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("snapshot_ttl", cfg.SnapshotTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
		zap.String("client_delete_policy", string(policy)),
		zap.Bool("nats", cfg.NATSURL != ""),
	)
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development default")
	}
	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "client-portal")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Record store ---
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pingCtx, cancelPing := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("record store not reachable at startup", zap.Error(err))
	}
	cancelPing()

	// --- Cache ---
	snapshots := cache.New[*aggregate.Snapshot](cfg.SnapshotTTL)
	defer snapshots.Close()

	// --- Change feed ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub(logger)
	defer hub.Close()
	var publisher port.ChangePublisher = hub

	var nc *nats.Conn
	origin := uuid.NewString()
	if cfg.NATSURL != "" {
		nc, err = events.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = events.Fanout{hub, events.NewNATSPublisher(nc, origin, logger)}
	}

	// --- Services ---
	portal := service.NewPortal(store, snapshots, publisher, metrics, logger, service.Options{DeletePolicy: policy})

	watchDone := make(chan struct{})
	if nc != nil {
		remote, unsubscribe, err := events.SubscribeRemote(nc, origin, 256, logger)
		if err != nil {
			return err
		}
		defer unsubscribe()
		go func() {
			defer close(watchDone)
			portal.WatchChanges(ctx, remote)
		}()
		logger.Info("nats change feed enabled", zap.String("url", cfg.NATSURL), zap.String("origin", origin))
	} else {
		close(watchDone)
	}

	authSvc := service.NewAuthService(store, service.AuthConfig{
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.JWTTTL,
		AdminPasswordHash: cfg.AdminPasswordHash,
		LoginPerMinute:    cfg.LoginRatePerMinute,
		LoginBurst:        cfg.LoginBurst,
	}, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Portal:      portal,
		Auth:        authSvc,
		Hub:         hub,
		CORSOrigins: cfg.CORSAllowedOrigins,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /v1/events streams
		IdleTimeout: 60 * time.Second,
	}

	// --- Graceful shutdown ---
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	// closing the hub ends open event streams so Shutdown can finish
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	stop()
	<-watchDone

	logger.Info("server stopped")
	return nil
}
