// Package main is the client portal backend: the HTTP API plus a few
// maintenance commands that run against the same record store.
package main

import (
	"os"

	"github.com/boddenberg/client-portal-go/internal/config"

	"github.com/spf13/cobra"
)

var (
	// version is set at build time
	version = "dev"

	portFlag     int
	logLevelFlag string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Client project portal backend",
	Long: `portal serves the client project portal API over a Firebase Realtime
Database (or a local SQLite file) and offers maintenance commands that
operate on the same records.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "HTTP port (overrides PORT)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCodeCmd)
	rootCmd.AddCommand(recountTeamCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

// loadConfig reads .env, the environment and then the command-line overrides.
func loadConfig() *config.Config {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()
	if portFlag > 0 {
		cfg.Port = portFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg
}
