package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/infra/cache"
	"github.com/boddenberg/client-portal-go/internal/infra/observability"
	"github.com/boddenberg/client-portal-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveCodeCmd = &cobra.Command{
	Use:   "resolve-code <code>",
	Short: "Print the client id behind an access code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logger := observability.NewLogger(cfg.LogLevel)
		defer logger.Sync()

		store, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		authSvc := service.NewAuthService(store, service.AuthConfig{JWTSecret: cfg.JWTSecret}, observability.NewMetrics(), logger)
		clientID, found, err := authSvc.ResolveAccessCode(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("access code %q not found", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), clientID)
		return nil
	},
}

var recountTeamCmd = &cobra.Command{
	Use:   "recount-team",
	Short: "Rewrite the stored project count of every team member",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		logger := observability.NewLogger(cfg.LogLevel)
		defer logger.Sync()

		store, closeStore, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		snapshots := cache.New[*aggregate.Snapshot](cfg.SnapshotTTL)
		defer snapshots.Close()

		portal := service.NewPortal(store, snapshots, nil, observability.NewMetrics(), logger, service.Options{})
		updated, err := portal.RecountTeam(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("team project counts recomputed", zap.Int("updated", updated))
		fmt.Fprintf(cmd.OutOrStdout(), "%d team member(s) updated\n", updated)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long: `hash-password prints the bcrypt hash of the given password. Without an
argument the password is read from the first line of standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordArg(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		hash, err := service.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func passwordArg(in io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}
	return line, nil
}
