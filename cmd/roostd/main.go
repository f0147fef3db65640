// Command roostd serves the roost HTTP and WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/roost/internal/auth"
	"github.com/dyluth/roost/internal/config"
	"github.com/dyluth/roost/internal/logging"
	"github.com/dyluth/roost/internal/server"
	"github.com/dyluth/roost/pkg/board"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Set during build
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "roostd",
	Short: "Serve the roost API",
	Long: `roostd serves the presenter and voter HTTP API, live WebSocket
updates and /healthz.

Configuration comes from roost.yml (or --config), .env and the
environment: REDIS_URL, ROOST_INSTANCE, ROOST_ADDR, ROOST_PUBLIC_URL,
ROOST_ALLOWED_ORIGINS, ROOST_JWT_SECRET, ROOST_LOG_LEVEL, ROOST_LOG_FORMAT.`,
	Args:          cobra.NoArgs,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Resolve(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default roost.yml if present)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// build connects to Redis and assembles the server. The caller closes the store.
func build(ctx context.Context, cfg *config.RoostConfig) (*server.Server, *board.Client, error) {
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, nil, err
	}

	authn, err := auth.New(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: %w (set ROOST_JWT_SECRET)", err)
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, err
	}

	store, err := board.NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("redis not accessible at %s: %w", cfg.Redis.URL, err)
	}

	srv := server.New(store, authn, server.Config{
		Addr:           cfg.Server.Addr,
		PublicURL:      cfg.Server.PublicURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return srv, store, nil
}

// run serves until ctx is cancelled, then shuts down within the configured timeout.
func run(ctx context.Context, cfg *config.RoostConfig) error {
	srv, store, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Info().
		Str("instance", cfg.Instance).
		Str("addr", cfg.Server.Addr).
		Str("version", version).
		Msg("roostd starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("roostd stopped")
	return nil
}
