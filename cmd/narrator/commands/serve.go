package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ai-scene-narrator-service/internal/app"
	"ai-scene-narrator-service/internal/config"
	httpapi "ai-scene-narrator-service/internal/http"
	"ai-scene-narrator-service/internal/observability"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the narrator",
	Long: `Run the narrator.

Serves the control API on HTTP_ADDR, gRPC health on GRPC_PORT and
Prometheus metrics on METRICS_ADDR until SIGINT or SIGTERM.

Examples:
  narrator serve
  CAMERA_SOURCE=snapshot CAMERA_SNAPSHOT_URL=http://cam.local/jpg narrator serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, config.Load())
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Configuration) error {
	application := app.New(cfg)
	if err := application.Init(context.WithoutCancel(ctx)); err != nil {
		application.Shutdown()
		return err
	}
	defer application.Shutdown()

	if err := application.Start(); err != nil {
		return err
	}

	obs := observability.NewServer(cfg.Service.MetricsAddr, nil, application.Ready)
	obs.Start()

	if err := application.GRPC.Start(); err != nil {
		return err
	}
	defer application.GRPC.Shutdown()

	srv := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		application.Logger.Info().Str("addr", cfg.Service.HTTPAddr).Msg("Control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	application.Logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("Control API shutdown incomplete")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		application.Logger.Warn().Err(err).Msg("Observability server shutdown incomplete")
	}
	return nil
}
