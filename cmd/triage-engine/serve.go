// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the triage API over HTTP",
	Long: `Serve exposes projects under /api/v1, with /health for liveness and
/metrics for Prometheus. Writes to one project are serialized; a train
request waits for its scoring run and answers with the new iteration.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	projects, closeFn, err := openRegistry(reg)
	if err != nil {
		return err
	}
	defer closeFn()

	srv, err := server.NewServer(projects, logger, server.Config{
		ServerConfig: engineCfg.Server,
		PageSize:     engineCfg.Triage.PageSize,
		Gatherer:     reg,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("signal received, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (default: server.host)")
	serveCmd.Flags().Int("port", 0, "listen port (default: server.port)")
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}
