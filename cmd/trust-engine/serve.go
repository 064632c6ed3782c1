// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/trust-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis pipeline over HTTP",
	Long: `Serve exposes POST /v1/analyze, GET /healthz, and GET /metrics. Analyses are
cached in memory for the configured TTL and expired entries are swept in
the background. SIGINT or SIGTERM drains in-flight requests before exit.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics, reg := newMetrics()
	p, err := newPipeline(metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cache.SweepInterval > 0 {
		go p.Cache.Run(ctx, cfg.Cache.SweepInterval, func(removed int) {
			metrics.ObserveEvictions(removed)
			if removed > 0 {
				logger.Debug().Int("removed", removed).Msg("swept expired cache entries")
			}
		})
	}

	serverCfg := cfg.Server
	if need := cfg.MinWriteTimeout(); serverCfg.WriteTimeout < need {
		logger.Warn().
			Dur("configured", serverCfg.WriteTimeout).
			Dur("required", need).
			Msg("server.write_timeout is shorter than the slowest analysis; raising it")
		serverCfg.WriteTimeout = need
	}

	srv := server.New(serverCfg, p, logger, metrics, reg)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
