package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpDelivery "github.com/chococrunch/pipeline/internal/delivery/http"
	"github.com/chococrunch/pipeline/internal/infrastructure/cache"
	"github.com/chococrunch/pipeline/internal/infrastructure/metrics"
	"github.com/chococrunch/pipeline/internal/scheduler"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API",
	Long: `Serves the engineered snapshot and the last execution report over HTTP.
When schedule.cron is set, pipeline runs are also triggered on that schedule.

Endpoints:
  GET  /health                 - Health check
  GET  /metrics                - Prometheus metrics
  GET  /api/v1/products        - Engineered products (brand_size, health_risk, limit)
  GET  /api/v1/products/:code  - One engineered product
  GET  /api/v1/report          - Last execution report
  POST /api/v1/pipeline/run    - Trigger a pipeline run

Example:
  chococrunch serve --port 8080`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (default from config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a.pipeline.SetObserver(m)

	responseCache, err := cache.New(ctx, a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer responseCache.Close()

	handler := httpDelivery.NewHandler(a.snapshots, a.pipeline, responseCache, a.cfg.Cache.TTL, a.log)
	router := httpDelivery.SetupRouter(a.cfg, handler, m.Handler(), a.log)

	if a.cfg.Schedule.Cron != "" {
		sched, err := scheduler.New(a.cfg.Schedule.Cron, a.pipeline, a.log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		a.log.WithField("next_run", sched.Next()).Info("Pipeline schedule active")
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(map[string]interface{}{
			"port":  a.cfg.Server.Port,
			"cache": a.cfg.Cache.Type,
		}).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("Shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
