package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/kindvoice/internal/health"
	"github.com/nadzzz/kindvoice/internal/transport"
	grpctransport "github.com/nadzzz/kindvoice/internal/transport/grpc"
	httptransport "github.com/nadzzz/kindvoice/internal/transport/http"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC transports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			slog.Info("kindvoice starting", "version", version)

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Create root context with signal handling for graceful shutdown.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// Initialize enabled transports.
			var transports []transport.Transport
			if cfg.Transports.HTTP.Enabled {
				transports = append(transports, httptransport.New(cfg.Transports.HTTP, a.store, a.intake,
					httptransport.WithAudio(cfg.Orchestrator.Audio)))
			}
			if cfg.Transports.GRPC.Enabled {
				transports = append(transports, grpctransport.New(cfg.Transports.GRPC,
					grpctransport.WithAudio(cfg.Orchestrator.Audio)))
			}
			if len(transports) == 0 {
				return errors.New("no transports enabled, enable at least one in config")
			}

			// Start health check server.
			healthServer := health.New(cfg.Server.HealthPort, a.orchestrator)
			go func() {
				if err := healthServer.ListenAndServe(ctx); err != nil {
					slog.Error("health server failed", "error", err)
				}
			}()

			// Start all transports. A failed transport stops the daemon.
			var wg sync.WaitGroup
			for _, t := range transports {
				wg.Add(1)
				go func(t transport.Transport) {
					defer wg.Done()
					slog.Info("starting transport", "name", t.Name())
					if err := t.Listen(ctx, a.orchestrator); err != nil {
						slog.Error("transport failed", "name", t.Name(), "error", err)
						cancel()
					}
				}(t)
			}

			healthServer.SetReady(true)
			slog.Info("kindvoice ready",
				"transports", len(transports),
				"remote", a.orchestrator.RemoteAvailable(),
				"local_voice", a.speaker.Engine(),
				"health_port", cfg.Server.HealthPort)

			// Block until shutdown signal.
			<-ctx.Done()
			healthServer.SetReady(false)
			slog.Info("shutdown signal received, draining...")

			drained := make(chan struct{})
			go func() {
				for _, t := range transports {
					if err := t.Close(); err != nil {
						slog.Error("transport close error", "name", t.Name(), "error", err)
					}
				}
				wg.Wait()
				close(drained)
			}()

			timeout, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stop()
			select {
			case <-drained:
			case <-timeout.Done():
				slog.Warn("shutdown timed out", "timeout", cfg.Server.ShutdownTimeout)
			}
			slog.Info("kindvoice stopped")
			return nil
		},
	}
}
