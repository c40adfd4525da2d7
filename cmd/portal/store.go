package main

import (
	"fmt"
	"net/http"

	"github.com/boddenberg/client-portal-go/internal/config"
	"github.com/boddenberg/client-portal-go/internal/infra/firebase"
	"github.com/boddenberg/client-portal-go/internal/infra/resilience"
	"github.com/boddenberg/client-portal-go/internal/infra/sqlitestore"
	"github.com/boddenberg/client-portal-go/internal/port"

	"go.uber.org/zap"
)

// openStore builds the record store selected by STORE_BACKEND. The returned
// func releases it.
func openStore(cfg *config.Config, logger *zap.Logger) (port.PortalStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendFirebase:
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		cb := resilience.NewCircuitBreaker("firebase", firebase.IsExpectedFailure)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		logger.Info("using Firebase Realtime Database as record store",
			zap.String("database_url", cfg.FirebaseDatabaseURL),
			zap.Bool("authenticated", cfg.FirebaseAuthToken != ""),
		)
		store := firebase.NewClient(httpClient, cfg.FirebaseDatabaseURL, cfg.FirebaseAuthToken, cb, resilienceCfg, logger)
		return store, func() error { return nil }, nil

	case config.BackendSQLite:
		logger.Info("using SQLite as record store", zap.String("path", cfg.SQLitePath))
		store, err := sqlitestore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
