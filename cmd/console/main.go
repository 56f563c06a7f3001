package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CaioWing/harbor-console/internal/auth"
	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "harbor-console",
	Short:         "Operator console for a fleet update backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (overrides "+config.ConfigFileEnv+")")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(rolloutsCmd)
	rootCmd.AddCommand(devicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.ConfigFileEnv, configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// cliLogger writes human-readable records to stderr so command output on
// stdout stays clean.
func cliLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level}))
}

// connect builds a backend client from the configured token, logging in
// with the configured credentials when the token is missing or expired.
func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*client.Client, error) {
	cl, err := client.New(cfg.Backend.URL, client.WithLogger(log), client.WithToken(cfg.Backend.Token))
	if err != nil {
		return nil, err
	}

	if tok := cfg.Backend.Token; tok != "" {
		info, err := auth.InspectBackendToken(tok)
		switch {
		case err != nil:
			log.Warn("backend token not inspectable", "err", err)
			return cl, nil
		case !info.Expired(time.Now()):
			return cl, nil
		}
		log.Info("backend token expired", "subject", info.Subject, "expired_at", info.ExpiresAt)
	}

	if cfg.Backend.Username == "" {
		if cfg.Backend.Token != "" {
			return nil, fmt.Errorf("backend token expired; run login again")
		}
		return nil, fmt.Errorf("no backend credentials; run login or set HARBOR_CONSOLE_BACKEND_USER")
	}
	if _, err := cl.Login(ctx, cfg.Backend.Username, cfg.Backend.Password); err != nil {
		return nil, err
	}
	log.Debug("logged in to backend", "user", cfg.Backend.Username)
	return cl, nil
}
